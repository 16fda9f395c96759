package handler

import (
	"net/http"
	"time"

	"github.com/tariwatch/tariwatch/internal/api/respond"
	"github.com/tariwatch/tariwatch/internal/store"
)

// timeframeWindow maps a timeframe query value to a lookback window.
// Zero means the full history.
func timeframeWindow(timeframe string) time.Duration {
	switch timeframe {
	case "hourly":
		return 12 * time.Hour
	case "daily":
		return 7 * 24 * time.Hour
	case "weekly":
		return 4 * 7 * 24 * time.Hour
	default:
		return 0
	}
}

// GetScores returns a user's score history within a timeframe, either as raw
// rows (?raw=true) or formatted as a Chart.js dataset payload.
func (h *Handler) GetScores(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	ctx := r.Context()

	var since time.Time
	if window := timeframeWindow(r.URL.Query().Get("timeframe")); window > 0 {
		since = time.Now().Add(-window)
	}

	scores, err := h.store.SnapshotsSince(ctx, id, since)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// An empty window falls back to the full history.
	if len(scores) == 0 && !since.IsZero() {
		scores, err = h.store.SnapshotsSince(ctx, id, time.Time{})
		if err != nil {
			respond.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	if r.URL.Query().Get("raw") == "true" {
		if scores == nil {
			scores = []store.Snapshot{}
		}
		respond.WriteJSON(w, http.StatusOK, scores)
		return
	}

	respond.WriteJSON(w, http.StatusOK, chartPayload(scores))
}

// --------------------------------------------------------------------------
// Chart.js formatting
// --------------------------------------------------------------------------

type chartDataset struct {
	Label            string   `json:"label"`
	Data             []*int64 `json:"data"`
	BorderColor      string   `json:"borderColor"`
	BackgroundColor  string   `json:"backgroundColor"`
	Tension          float64  `json:"tension"`
	Fill             bool     `json:"fill"`
	BorderWidth      int      `json:"borderWidth"`
	PointRadius      int      `json:"pointRadius"`
	PointHoverRadius int      `json:"pointHoverRadius"`
	Hidden           bool     `json:"hidden"`
	YAxisID          string   `json:"yAxisID,omitempty"`
	BorderDash       []int    `json:"borderDash,omitempty"`
}

type chartData struct {
	Labels   []string       `json:"labels"`
	Datasets []chartDataset `json:"datasets"`
}

// chartPayload shapes snapshots into the dashboard's Chart.js structure:
// total score, YAT holdings, and rank (on a secondary axis, dashed).
func chartPayload(scores []store.Snapshot) chartData {
	labels := make([]string, len(scores))
	totals := make([]*int64, len(scores))
	yat := make([]*int64, len(scores))
	ranks := make([]*int64, len(scores))

	for i, s := range scores {
		labels[i] = s.CreatedAt.Local().Format("1/2/2006, 3:04:05 PM")
		t, y := s.TotalScore, s.YatHolding
		totals[i] = &t
		yat[i] = &y
		ranks[i] = parseRank(s.Rank)
	}

	return chartData{
		Labels: labels,
		Datasets: []chartDataset{
			{
				Label:            "Total Score",
				Data:             totals,
				BorderColor:      "rgb(75, 192, 192)",
				BackgroundColor:  "rgba(75, 192, 192, 0.1)",
				Tension:          0.1,
				BorderWidth:      2,
				PointHoverRadius: 5,
			},
			{
				Label:            "YAT",
				Data:             yat,
				BorderColor:      "rgb(54, 162, 235)",
				BackgroundColor:  "rgba(54, 162, 235, 0.1)",
				Tension:          0.1,
				BorderWidth:      2,
				PointHoverRadius: 5,
			},
			{
				Label:            "Rank",
				Data:             ranks,
				BorderColor:      "rgb(76, 175, 80)",
				BackgroundColor:  "rgba(76, 175, 80, 0.05)",
				Tension:          0.1,
				BorderWidth:      3,
				PointHoverRadius: 6,
				YAxisID:          "y1",
				BorderDash:       []int{5, 5},
			},
		},
	}
}
