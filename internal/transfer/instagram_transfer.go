package transfer

// Remote Graph API shapes. Only the fields this system reads.

type ContainerResponse struct {
	ID string `json:"id"`
}

type ContainerStatus struct {
	StatusCode string `json:"status_code"`
	ID         string `json:"id"`
}

// Container status vocabulary returned by the remote platform.
const (
	StatusFinished   = "FINISHED"
	StatusError      = "ERROR"
	StatusInProgress = "IN_PROGRESS"
	StatusPublished  = "PUBLISHED"
)

type PublishResponse struct {
	ID string `json:"id"`
}

type InsightsResponse struct {
	Data []InsightMetric `json:"data"`
}

type InsightMetric struct {
	Name   string         `json:"name"`
	Values []InsightValue `json:"values"`
}

type InsightValue struct {
	Value int `json:"value"`
}

type APIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// MediaInsights is the flattened metric set stored per post. A metric absent
// from the remote response stays zero.
type MediaInsights struct {
	Impressions   int `json:"impressions"`
	Reach         int `json:"reach"`
	Likes         int `json:"likes"`
	Comments      int `json:"comments"`
	Shares        int `json:"shares"`
	Saves         int `json:"saves"`
	ProfileVisits int `json:"profile_visits"`
	Follows       int `json:"follows"`
}
