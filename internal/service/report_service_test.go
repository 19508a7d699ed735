package service

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapdesk/lapdesk-backend/internal/timer"
)

func str(s string) *string { return &s }

// reportState builds a finished, graded session covering questions 1..5
// with known solve times: q1=60s, q2=30s, q3=90s, q4 and q5 unattempted.
func reportState(t *testing.T) timer.State {
	t.Helper()

	sess := timer.NewSession(nil)
	require.NoError(t, sess.Start(timer.Config{
		Name:         "Mock Exam",
		RangeStart:   1,
		RangeEnd:     5,
		TotalMinutes: 10,
	}))
	sess.Advance(timer.InitialHold)

	sess.Advance(60 * time.Second)
	sess.RecordLap(1, str("A"))
	sess.Advance(30 * time.Second)
	sess.RecordLap(2, str("B"))
	sess.Advance(90 * time.Second)
	sess.RecordLap(3, str("C"))

	sess.Finish()
	sess.Grade(map[int]string{1: "A", 2: "X", 3: "C"})

	return sess.State()
}

func TestReportSummaryCounts(t *testing.T) {
	svc := NewReportService(zerolog.Nop())
	r := svc.Build(reportState(t))

	assert.Equal(t, "Mock Exam", r.ExamName)
	assert.Equal(t, 5, r.QuestionCount)
	assert.Equal(t, 3, r.AttemptedCount)
	assert.Equal(t, 3, r.AnsweredCount)
	assert.InDelta(t, 180.0, r.TotalSolveSeconds, 0.001)
	assert.InDelta(t, 60.0, r.AverageSolveSeconds, 0.001)
	assert.False(t, r.TimeUp)
}

func TestReportTimeSinksOrdered(t *testing.T) {
	svc := NewReportService(zerolog.Nop())
	r := svc.Build(reportState(t))

	require.Len(t, r.TimeSinks, 3)
	assert.Equal(t, 3, r.TimeSinks[0].Number)
	assert.Equal(t, 1, r.TimeSinks[1].Number)
	assert.Equal(t, 2, r.TimeSinks[2].Number)
	assert.InDelta(t, 0.5, r.TimeSinks[0].ShareOfTotal, 0.001)
}

func TestReportPacingThirds(t *testing.T) {
	svc := NewReportService(zerolog.Nop())
	r := svc.Build(reportState(t))

	// 180s elapsed, thirds at 60s/120s. Event midpoints: q1 at 30s,
	// q2 at 75s, q3 at 135s.
	assert.InDelta(t, 60.0, r.Pacing.FirstThirdSeconds, 0.001)
	assert.InDelta(t, 30.0, r.Pacing.MiddleThirdSeconds, 0.001)
	assert.InDelta(t, 90.0, r.Pacing.LastThirdSeconds, 0.001)
	assert.Equal(t, 1, r.Pacing.FirstThirdLaps)
	assert.Equal(t, 1, r.Pacing.MiddleThirdLaps)
	assert.Equal(t, 1, r.Pacing.LastThirdLaps)
}

func TestReportAccuracyBreakdown(t *testing.T) {
	svc := NewReportService(zerolog.Nop())
	r := svc.Build(reportState(t))

	require.NotNil(t, r.Accuracy)
	assert.Equal(t, 2, r.Accuracy.CorrectCount)
	assert.Equal(t, 1, r.Accuracy.IncorrectCount)
	assert.Equal(t, 2, r.Accuracy.UngradedCount)
	assert.InDelta(t, 75.0, r.Accuracy.CorrectAvgSeconds, 0.001)   // (60+90)/2
	assert.InDelta(t, 30.0, r.Accuracy.IncorrectAvgSeconds, 0.001) // q2
	assert.InDelta(t, 40.0, r.Accuracy.ScorePercent, 0.001)        // 2 of 5
}

func TestReportAccuracyAbsentUntilGraded(t *testing.T) {
	sess := timer.NewSession(nil)
	require.NoError(t, sess.Start(timer.Config{RangeStart: 1, RangeEnd: 3, Unlimited: true}))

	svc := NewReportService(zerolog.Nop())
	r := svc.Build(sess.State())

	assert.Nil(t, r.Accuracy)
	assert.Equal(t, 0, r.AttemptedCount)
}

func TestReportCSVOutput(t *testing.T) {
	svc := NewReportService(zerolog.Nop())

	var buf bytes.Buffer
	require.NoError(t, svc.WriteCSV(&buf, reportState(t)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6) // header + 5 questions
	assert.Equal(t, "question,solve_seconds,attempts,answer,correct", lines[0])
	assert.Equal(t, "1,60.000,1,A,true", lines[1])
	assert.Equal(t, "2,30.000,1,B,false", lines[2])
	assert.Equal(t, "4,0.000,0,,", lines[4])
}
