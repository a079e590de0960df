package universe

import "time"

// Stock is one listing in the screening universe. Symbols are stored in
// their bare exchange form, without any data-source suffix.
type Stock struct {
	Symbol      string    `json:"symbol"`
	CompanyName string    `json:"company_name"`
	Industry    string    `json:"industry"`
	ISIN        string    `json:"isin"`
	CreatedAt   time.Time `json:"created_at"`
}
