package affiliatedto

type EnrollInput struct {
	AccountID  string
	ParentCode string
	ParentID   string
}

type ReparentInput struct {
	AdminID     string
	ChildID     string
	NewParentID string
	Reason      string
}

type SetStatusInput struct {
	AdminID     string
	AffiliateID string
	Status      string
	Reason      string
}
