package domain

// TokenResponse is the payload returned by the token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Campaign is one advertising campaign as listed by the performance API.
// The API serializes ids as strings.
type Campaign struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	State string `json:"state"`
}

type CampaignList struct {
	List []Campaign `json:"list"`
}

// StatisticsRequest asks the API to generate a statistics report for a set
// of campaigns over an inclusive date range.
type StatisticsRequest struct {
	Campaigns []string `json:"campaigns"`
	DateFrom  string   `json:"dateFrom"`
	DateTo    string   `json:"dateTo"`
	GroupBy   string   `json:"groupBy"`
}

// StatisticsSubmitted acknowledges a report request with the handle used to
// poll for and download the result.
type StatisticsSubmitted struct {
	UUID string `json:"UUID"`
}

// ReportStatus is the state of an asynchronous report generation job.
type ReportStatus struct {
	UUID  string `json:"UUID"`
	State string `json:"state"`
	Error string `json:"error"`
}

func (s ReportStatus) Ready() bool {
	return s.State == "OK"
}

func (s ReportStatus) Failed() bool {
	return s.State == "ERROR"
}
