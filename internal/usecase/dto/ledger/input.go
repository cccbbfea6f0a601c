package ledgerdto

type DecideInput struct {
	EntryID  string
	Decision string
	AdminID  string
	Note     string
}

type ListEntriesInput struct {
	AffiliateID string
	Statuses    []string
	FraudHold   *bool
	Page        int64
	Limit       int64
}
