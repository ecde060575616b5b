package contact

// Summary is the consolidated view of one identity component.
//
// Emails and PhoneNumbers keep first-seen order by creation time.
// SecondaryContactIDs is ascending.
type Summary struct {
	PrimaryContactID    int64    `json:"primaryContactId" yaml:"primaryContactId"`
	Emails              []string `json:"emails" yaml:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers" yaml:"phoneNumbers"`
	SecondaryContactIDs []int64  `json:"secondaryContactIds" yaml:"secondaryContactIds"`
}

// Envelope is the wire shape returned to clients: {"contact": {...}}.
type Envelope struct {
	Contact Summary `json:"contact"`
}
