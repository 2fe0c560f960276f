package models

// LoginResult is returned once the callback completed a profile's flow.
type LoginResult struct {
	Profile     string `json:"profile"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	ProfileURL  string `json:"profileUrl,omitempty"`
	Message     string `json:"message"`
}

// AuthStatus is the authentication state of a profile.
type AuthStatus struct {
	Profile string `json:"profile"`
	State   string `json:"state"`
}
