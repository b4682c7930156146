package domain

// Account is one advertiser account under sync. Credentials come from the
// account_list/account_service_data tables and are immutable during a run.
type Account struct {
	ID           int64  `json:"id"`
	APIID        int64  `json:"api_id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"-"`
}
