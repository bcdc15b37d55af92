package coordinator

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const reportRule = "*********************************************************"

// ClientScore is one line of the final tally.
type ClientScore struct {
	ClientID string `json:"clientId"`
	Order    int    `json:"order"`
	Score    int    `json:"score"`
}

// Report summarizes a completed session. It is meant for people, not machines.
type Report struct {
	Primes  []string      `json:"primes"`
	Scores  []ClientScore `json:"scores"`
	Elapsed time.Duration `json:"elapsed"`
}

func newReport(primes []string, records []ClientRecord, elapsed time.Duration) *Report {
	scores := make([]ClientScore, 0, len(records))
	for _, rec := range records {
		scores = append(scores, ClientScore{ClientID: rec.ID, Order: rec.Order, Score: rec.Score})
	}
	return &Report{Primes: primes, Scores: scores, Elapsed: elapsed}
}

// Total returns the sum of all scores.
func (r *Report) Total() int {
	n := 0
	for _, s := range r.Scores {
		n += s.Score
	}
	return n
}

// Lines renders the report one line at a time.
func (r *Report) Lines() []string {
	lines := []string{
		"---PRIME NUMBERS: ---",
		"[" + strings.Join(r.Primes, ", ") + "]",
		"--- RESULT ---",
	}
	for _, s := range r.Scores {
		lines = append(lines, fmt.Sprintf("clientId:%s: %d prime numbers sent", s.ClientID, s.Score))
	}
	ms := r.Elapsed.Milliseconds()
	return append(lines,
		reportRule,
		fmt.Sprintf("Total execution time: %d ms (%.2f seconds)", ms, float64(ms)/1000),
		reportRule,
	)
}

func (r *Report) String() string { return strings.Join(r.Lines(), "\n") }

// Log writes every line of the report at info level.
func (r *Report) Log(log *logrus.Entry) {
	for _, line := range r.Lines() {
		log.Info(line)
	}
}
