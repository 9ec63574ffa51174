package api

// BoolResponse carries a yes/no answer.
type BoolResponse struct {
	Allowed bool `json:"allowed" description:"Result of the check"`
}

// PermissionsResponse lists permission names.
type PermissionsResponse struct {
	Permissions []string `json:"permissions" description:"Sorted permission names"`
}
