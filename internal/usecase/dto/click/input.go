package clickdto

type RecordClickInput struct {
	Code         string
	VisitorToken string
	IP           string
	UserAgent    string
	LandingURL   string
}
