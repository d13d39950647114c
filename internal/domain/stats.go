package domain

// UsageCounts are the raw counters read from the store.
type UsageCounts struct {
	Turns      int
	Sessions   int
	Helpful    int
	NotHelpful int
}

// Stats is the derived usage summary. SatisfactionRate is a percentage
// rounded to one decimal place.
type Stats struct {
	TotalMessages    int
	TotalSessions    int
	HelpfulCount     int
	NotHelpfulCount  int
	SatisfactionRate float64
}
