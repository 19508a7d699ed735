package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog"

	"github.com/lapdesk/lapdesk-backend/internal/timer"
)

const timeSinkLimit = 5

// QuestionReport is one question's line in the analysis report.
type QuestionReport struct {
	Number       int     `json:"number"`
	SolveSeconds float64 `json:"solve_seconds"`
	Attempts     int     `json:"attempts"`
	ShareOfTotal float64 `json:"share_of_total"`
	Answered     bool    `json:"answered"`
	Correct      *bool   `json:"correct,omitempty"`
}

// Pacing splits attributed time and lap counts across the first, middle,
// and last third of the elapsed exam time. A rushed finish shows up as a
// crowded last third.
type Pacing struct {
	FirstThirdSeconds  float64 `json:"first_third_seconds"`
	MiddleThirdSeconds float64 `json:"middle_third_seconds"`
	LastThirdSeconds   float64 `json:"last_third_seconds"`
	FirstThirdLaps     int     `json:"first_third_laps"`
	MiddleThirdLaps    int     `json:"middle_third_laps"`
	LastThirdLaps      int     `json:"last_third_laps"`
}

// Accuracy correlates solve time with grading outcomes. Only present once
// an answer key has been applied.
type Accuracy struct {
	CorrectCount        int     `json:"correct_count"`
	IncorrectCount      int     `json:"incorrect_count"`
	UngradedCount       int     `json:"ungraded_count"`
	CorrectAvgSeconds   float64 `json:"correct_avg_seconds"`
	IncorrectAvgSeconds float64 `json:"incorrect_avg_seconds"`
	ScorePercent        float64 `json:"score_percent"`
}

// Report is the full post-exam analysis view.
type Report struct {
	ExamName            string           `json:"exam_name"`
	TotalMinutes        float64          `json:"total_minutes"`
	Unlimited           bool             `json:"unlimited"`
	ElapsedSeconds      float64          `json:"elapsed_seconds"`
	TimeUp              bool             `json:"time_up"`
	QuestionCount       int              `json:"question_count"`
	AttemptedCount      int              `json:"attempted_count"`
	AnsweredCount       int              `json:"answered_count"`
	TotalSolveSeconds   float64          `json:"total_solve_seconds"`
	AverageSolveSeconds float64          `json:"average_solve_seconds"`
	TimeSinks           []QuestionReport `json:"time_sinks"`
	Pacing              Pacing           `json:"pacing"`
	Accuracy            *Accuracy        `json:"accuracy,omitempty"`
	Questions           []QuestionReport `json:"questions"`
}

// ReportService derives analysis reports from session state.
type ReportService struct {
	log zerolog.Logger
}

// NewReportService creates a new ReportService.
func NewReportService(log zerolog.Logger) *ReportService {
	return &ReportService{log: log.With().Str("component", "report_service").Logger()}
}

// Build computes the full report for a session state.
func (s *ReportService) Build(st timer.State) *Report {
	r := &Report{
		ExamName:       st.Config.Name,
		TotalMinutes:   st.Config.TotalMinutes,
		Unlimited:      st.Config.Unlimited,
		ElapsedSeconds: st.Elapsed.Seconds(),
		TimeUp:         st.TimeUp,
		QuestionCount:  len(st.Questions),
	}

	var totalSolve float64
	for _, q := range st.Questions {
		if q.Attempts > 0 {
			r.AttemptedCount++
		}
		if q.Answer != nil {
			r.AnsweredCount++
		}
		totalSolve += q.SolveTime.Seconds()
	}
	r.TotalSolveSeconds = totalSolve
	if r.AttemptedCount > 0 {
		r.AverageSolveSeconds = totalSolve / float64(r.AttemptedCount)
	}

	r.Questions = make([]QuestionReport, 0, len(st.Questions))
	for _, q := range st.Questions {
		qr := QuestionReport{
			Number:       q.Number,
			SolveSeconds: q.SolveTime.Seconds(),
			Attempts:     q.Attempts,
			Answered:     q.Answer != nil,
			Correct:      q.Correct,
		}
		if totalSolve > 0 {
			qr.ShareOfTotal = qr.SolveSeconds / totalSolve
		}
		r.Questions = append(r.Questions, qr)
	}

	r.TimeSinks = topTimeSinks(r.Questions, timeSinkLimit)
	r.Pacing = pacingThirds(st)
	r.Accuracy = accuracyBreakdown(st.Graded, r.Questions)

	return r
}

// WriteCSV streams the per-question breakdown as CSV.
func (s *ReportService) WriteCSV(w io.Writer, st timer.State) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"question", "solve_seconds", "attempts", "answer", "correct"}); err != nil {
		return err
	}

	for _, q := range st.Questions {
		answer := ""
		if q.Answer != nil {
			answer = *q.Answer
		}
		correct := ""
		if q.Correct != nil {
			correct = fmt.Sprintf("%t", *q.Correct)
		}
		row := []string{
			fmt.Sprintf("%d", q.Number),
			fmt.Sprintf("%.3f", q.SolveTime.Seconds()),
			fmt.Sprintf("%d", q.Attempts),
			answer,
			correct,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func topTimeSinks(questions []QuestionReport, limit int) []QuestionReport {
	sinks := make([]QuestionReport, 0, len(questions))
	for _, q := range questions {
		if q.SolveSeconds > 0 {
			sinks = append(sinks, q)
		}
	}
	sort.Slice(sinks, func(i, j int) bool {
		if sinks[i].SolveSeconds != sinks[j].SolveSeconds {
			return sinks[i].SolveSeconds > sinks[j].SolveSeconds
		}
		return sinks[i].Number < sinks[j].Number
	})
	if len(sinks) > limit {
		sinks = sinks[:limit]
	}
	return sinks
}

// pacingThirds buckets every lap event into the elapsed-time third that
// contains the midpoint of its attributed interval.
func pacingThirds(st timer.State) Pacing {
	elapsed := st.Elapsed.Seconds()
	if elapsed <= 0 {
		return Pacing{}
	}
	third := elapsed / 3

	var p Pacing
	for _, q := range st.Questions {
		for _, e := range q.Events {
			end := e.Timestamp.Seconds()
			mid := end - e.Duration.Seconds()/2
			seconds := e.Duration.Seconds()
			switch {
			case mid < third:
				p.FirstThirdSeconds += seconds
				p.FirstThirdLaps++
			case mid < 2*third:
				p.MiddleThirdSeconds += seconds
				p.MiddleThirdLaps++
			default:
				p.LastThirdSeconds += seconds
				p.LastThirdLaps++
			}
		}
	}
	return p
}

func accuracyBreakdown(graded bool, questions []QuestionReport) *Accuracy {
	if !graded {
		return nil
	}

	a := &Accuracy{}
	var correctTime, incorrectTime float64
	for _, q := range questions {
		switch {
		case q.Correct == nil:
			a.UngradedCount++
		case *q.Correct:
			a.CorrectCount++
			correctTime += q.SolveSeconds
		default:
			a.IncorrectCount++
			incorrectTime += q.SolveSeconds
		}
	}
	if a.CorrectCount > 0 {
		a.CorrectAvgSeconds = correctTime / float64(a.CorrectCount)
	}
	if a.IncorrectCount > 0 {
		a.IncorrectAvgSeconds = incorrectTime / float64(a.IncorrectCount)
	}
	if len(questions) > 0 {
		a.ScorePercent = 100 * float64(a.CorrectCount) / float64(len(questions))
	}
	return a
}
