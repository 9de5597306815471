package models

// Cookie is a normalized browser cookie applied to the session before a
// harvest starts. Expiry is seconds since the epoch; zero means session cookie.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Secure   bool   `json:"secure"`
	SameSite string `json:"sameSite,omitempty"`
	Expiry   int64  `json:"expiry,omitempty"`
}
