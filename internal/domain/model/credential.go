package model

// Credential identifies one official account. AppID and AppSecret are exchanged
// for an access token; Author is stamped on every draft created with it.
// Credentials are immutable once loaded from configuration.
type Credential struct {
	Name       string
	AppID      string
	AppSecret  string
	Author     string
	Broadcast  BroadcastSettings
	CreateMenu bool
}

// BroadcastSettings controls the optional mass-send step that runs after a
// listed-news upload on a verified account.
type BroadcastSettings struct {
	Enabled bool
	ToAll   bool
	TagID   int
}

// MaskedAppID returns the last four characters of the AppID, which is all that
// is written to logs and the publish history.
func (c Credential) MaskedAppID() string {
	if len(c.AppID) <= 4 {
		return c.AppID
	}
	return c.AppID[len(c.AppID)-4:]
}

// Label returns a short human name for the account.
func (c Credential) Label() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Author != "" {
		return c.Author
	}
	return "****" + c.MaskedAppID()
}
