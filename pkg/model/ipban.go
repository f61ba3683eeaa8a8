package model

// IPBan bans a network address outright. The address is the unique key: a
// second ban of the same address is rejected with ErrDuplicateAddress.
type IPBan struct {
	ID       int64  `json:"id"`
	Address  string `json:"address"`
	IssuedBy string `json:"issued_by"`
	Reason   string `json:"reason"`
	IssuedAt int64  `json:"issued_at"` // unix millis
}
