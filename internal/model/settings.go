package model

// MailSettings is the runtime-editable counterpart of the mail section in the
// config file. When Enabled, non-empty fields override the configured values
// at send time.
type MailSettings struct {
	Enabled    bool   `json:"enabled"`
	Host       string `json:"host,omitempty"`
	Port       int    `json:"port,omitempty"`
	Encryption string `json:"encryption,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	Recipient  string `json:"recipient,omitempty"`
}
