package tracker

// Credentials identify the remote tracking space and authenticate against it.
type Credentials struct {
	// Organization is the tracker organization name.
	Organization string `json:"organization"`

	// Project is the project within the organization.
	Project string `json:"project"`

	// PAT is the personal access token used as the basic-auth password.
	PAT string `json:"pat"`
}

// Configured reports whether all three fields are present. Submission must
// not be attempted against unconfigured credentials.
func (c Credentials) Configured() bool {
	return c.Organization != "" && c.Project != "" && c.PAT != ""
}
