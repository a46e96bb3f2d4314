package attendance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
	"github.com/warp/attendance-engine/generic"
)

// Monday 2024-03-11 09:00 UTC
var monday = time.Date(2024, time.March, 11, 9, 0, 0, 0, time.UTC)

type recordingInvalidator struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingInvalidator) InvalidateWorkerMonth(_ context.Context, w generic.WorkerID, m generic.Month) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, string(w)+"/"+m.String())
	return nil
}

type fixture struct {
	store    *store.Memory
	clock    *generic.FixedClock
	sessions *attendance.SessionService
	inv      *recordingInvalidator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	require.NoError(t, mem.SaveWorker(context.Background(), attendance.Worker{
		ID: "w1", Name: "Alice", MonthlySalary: decimal.NewFromInt(3000),
	}))
	clock := generic.NewFixedClock(monday)
	svc := attendance.NewSessionService(mem, clock, time.UTC)
	inv := &recordingInvalidator{}
	svc.Invalidator = inv
	return &fixture{store: mem, clock: clock, sessions: svc, inv: inv}
}

func office() attendance.Capture {
	return attendance.Capture{
		PhotoRef: "photo.jpg",
		Location: &attendance.Location{Lat: 52.52, Lng: 13.40, Address: "Main office"},
	}
}

// =============================================================================
// CHECK-IN
// =============================================================================

func TestCheckIn_CreatesOpenPresentSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())
	require.NoError(t, err)

	assert.Equal(t, generic.NewDate(2024, 3, 11), s.Date)
	assert.True(t, s.IsOpen())
	assert.Equal(t, attendance.StateOpen, s.State())
	assert.Equal(t, attendance.StatusPresent, s.Status)
	assert.Nil(t, s.ActualWorkingHours)
	assert.Equal(t, monday, s.CheckInTime)
	assert.Equal(t, []string{"w1/2024-03"}, f.inv.calls)
}

func TestCheckIn_DuplicateSameDay(t *testing.T) {
	// GIVEN: A closed session for today
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())
	require.NoError(t, err)
	f.clock.Advance(8 * time.Hour)
	_, err = f.sessions.CheckOut(ctx, first.ID, office())
	require.NoError(t, err)

	// WHEN: Checking in again the same day
	_, err = f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())

	// THEN: Duplicate carrying the existing session
	var dup *attendance.DuplicateSessionError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.ExistingID)
	assert.Equal(t, generic.NewDate(2024, 3, 11), dup.Date)
	assert.ErrorIs(t, err, generic.ErrDuplicateSession)
}

func TestCheckIn_OpenSessionFromEarlierDay(t *testing.T) {
	// GIVEN: Monday's session left open
	f := newFixture(t)
	ctx := context.Background()
	open, err := f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())
	require.NoError(t, err)

	// WHEN: Checking in on Tuesday
	f.clock.Advance(24 * time.Hour)
	_, err = f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())

	// THEN: Conflict naming Monday
	var conflict *attendance.OpenSessionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, open.ID, conflict.OpenSessionID)
	assert.Equal(t, generic.NewDate(2024, 3, 11), conflict.OpenDate)
	assert.Equal(t, generic.NewDate(2024, 3, 12), conflict.RequestedDate)
	assert.True(t, generic.IsConflict(err))
}

func TestCheckIn_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		worker  generic.WorkerID
		capture attendance.Capture
		field   string
	}{
		{"missing worker", "", office(), "worker_id"},
		{"missing photo", "w1", attendance.Capture{Location: office().Location}, "check_in.photo_ref"},
		{"missing location", "w1", attendance.Capture{PhotoRef: "p.jpg"}, "check_in.location"},
		{"blank address", "w1", attendance.Capture{PhotoRef: "p.jpg", Location: &attendance.Location{Address: "  "}}, "check_in.location.address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sessions.CheckIn(ctx, tt.worker, f.sessions.Today(), tt.capture)
			var ve *attendance.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.True(t, generic.IsClientError(err))
		})
	}
	assert.Empty(t, f.inv.calls)
}

func TestCheckIn_UnknownWorker(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.CheckIn(context.Background(), "ghost", f.sessions.Today(), office())

	var nf *attendance.WorkerNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.True(t, generic.IsNotFound(err))
}

func TestCheckIn_NonWorkingDay(t *testing.T) {
	// GIVEN: Rejection enabled and a Saturday
	f := newFixture(t)
	f.sessions.RejectNonWorkingDays = true
	saturday := generic.NewDate(2024, 3, 16)

	_, err := f.sessions.CheckIn(context.Background(), "w1", saturday, office())

	var nwd *attendance.NonWorkingDayError
	require.ErrorAs(t, err, &nwd)
	assert.Equal(t, saturday, nwd.Date)

	// WHEN: Rejection is off, THEN: Saturday is accepted
	f.sessions.RejectNonWorkingDays = false
	_, err = f.sessions.CheckIn(context.Background(), "w1", saturday, office())
	assert.NoError(t, err)
}

func TestCheckIn_DateFollowsLocation(t *testing.T) {
	// GIVEN: 23:30 UTC on Monday, a service running in UTC+9
	f := newFixture(t)
	f.clock.Set(time.Date(2024, 3, 11, 23, 30, 0, 0, time.UTC))
	f.sessions.Location = time.FixedZone("JST", 9*60*60)

	// THEN: Today is already Tuesday
	assert.Equal(t, generic.NewDate(2024, 3, 12), f.sessions.Today())
}

func TestCheckIn_ConcurrentSameKeyOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	today := f.sessions.Today()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.sessions.CheckIn(ctx, "w1", today, office())
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, generic.ErrDuplicateSession)
	}
	assert.Equal(t, 1, ok)
}

// =============================================================================
// CHECK-OUT
// =============================================================================

func TestCheckOut_ClassifiesByHours(t *testing.T) {
	tests := []struct {
		name   string
		worked time.Duration
		want   attendance.Status
		hours  string
	}{
		{"overtime", 10*time.Hour + 30*time.Minute, attendance.StatusOvertime, "10.5"},
		{"full day", 8*time.Hour + 30*time.Minute, attendance.StatusFullDay, "8.5"},
		{"half day", 5 * time.Hour, attendance.StatusHalfDay, "5"},
		{"present", 2 * time.Hour, attendance.StatusPresent, "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.clock.Set(monday.Add(-time.Hour)) // 08:00
			ctx := context.Background()

			s, err := f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())
			require.NoError(t, err)
			f.clock.Advance(tt.worked)

			out, err := f.sessions.CheckOut(ctx, s.ID, office())
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Status)
			assert.Equal(t, attendance.StateClosed, out.State())
			require.NotNil(t, out.ActualWorkingHours)
			assert.Equal(t, tt.hours, out.ActualWorkingHours.String())
			assert.Equal(t, "photo.jpg", out.CheckOutPhotoRef)
		})
	}
}

func TestCheckOut_AlreadyClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())
	require.NoError(t, err)
	f.clock.Advance(8 * time.Hour)
	_, err = f.sessions.CheckOut(ctx, s.ID, office())
	require.NoError(t, err)

	_, err = f.sessions.CheckOut(ctx, s.ID, office())

	var closed *attendance.SessionClosedError
	require.ErrorAs(t, err, &closed)
	assert.Equal(t, s.Date, closed.Date)
}

func TestCheckOut_ConcurrentOnlyOneWins(t *testing.T) {
	// GIVEN: One open session
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())
	require.NoError(t, err)
	f.clock.Advance(8 * time.Hour)

	// WHEN: Several check-outs race, each with its own photo
	var wg sync.WaitGroup
	errs := make([]error, 8)
	photos := make([]string, len(errs))
	for i := range errs {
		photos[i] = "out-" + string(rune('a'+i)) + ".jpg"
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.sessions.CheckOut(ctx, s.ID, attendance.Capture{PhotoRef: photos[i], Location: office().Location})
		}(i)
	}
	wg.Wait()

	// THEN: Exactly one succeeds and its capture is the stored one
	winner := -1
	for i, err := range errs {
		if err == nil {
			assert.Equal(t, -1, winner, "more than one check-out succeeded")
			winner = i
			continue
		}
		var closed *attendance.SessionClosedError
		assert.ErrorAs(t, err, &closed)
	}
	require.NotEqual(t, -1, winner)

	got, err := f.sessions.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, photos[winner], got.CheckOutPhotoRef)
}

func TestCheckOut_CrossDay(t *testing.T) {
	// GIVEN: An open Monday session
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())
	require.NoError(t, err)

	// WHEN: Checking out on Tuesday
	f.clock.Advance(25 * time.Hour)
	_, err = f.sessions.CheckOut(ctx, s.ID, office())

	// THEN: Refused; the session stays open
	var cross *attendance.CrossDayCheckoutError
	require.ErrorAs(t, err, &cross)
	assert.Equal(t, generic.NewDate(2024, 3, 11), cross.SessionDate)
	assert.Equal(t, generic.NewDate(2024, 3, 12), cross.CheckoutDate)

	got, err := f.sessions.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOpen())
}

func TestCheckOut_NotAfterCheckIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())
	require.NoError(t, err)

	_, err = f.sessions.CheckOut(ctx, s.ID, office())

	var tr *attendance.InvalidTimeRangeError
	assert.ErrorAs(t, err, &tr)
}

func TestCheckOut_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.CheckOut(context.Background(), "any", attendance.Capture{})

	var ve *attendance.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "check_out.photo_ref", ve.Field)
}

func TestCheckOut_UnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.CheckOut(context.Background(), "missing", office())
	assert.ErrorIs(t, err, generic.ErrSessionNotFound)
}

// =============================================================================
// CORRECTIONS AND DELETE
// =============================================================================

func TestCorrectTimes_ResolvesOpenSession(t *testing.T) {
	// GIVEN: Monday left open, now Tuesday
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)

	// WHEN: An admin sets a 09:00-13:30 range
	out := monday.Add(4*time.Hour + 30*time.Minute)
	notes := "forgot to check out"
	got, err := f.sessions.CorrectTimes(ctx, s.ID, attendance.Correction{CheckIn: monday, CheckOut: &out, Notes: &notes})
	require.NoError(t, err)

	// THEN: Closed and classified, and Tuesday check-in is unblocked
	assert.Equal(t, attendance.StatusHalfDay, got.Status)
	assert.Equal(t, attendance.StateCorrected, got.State())
	assert.Equal(t, "4.5", got.Hours().String())
	assert.Equal(t, notes, got.Notes)
	require.NotNil(t, got.CorrectedAt)

	_, err = f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())
	assert.NoError(t, err)
}

func TestCorrectTimes_InvalidRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())
	require.NoError(t, err)

	before := monday.Add(-time.Minute)
	_, err = f.sessions.CorrectTimes(ctx, s.ID, attendance.Correction{CheckIn: monday, CheckOut: &before})

	var tr *attendance.InvalidTimeRangeError
	require.ErrorAs(t, err, &tr)
	assert.ErrorIs(t, err, generic.ErrInvalidTimeRange)

	got, err := f.sessions.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CorrectedAt)
}

func TestCorrectTimes_WithoutCheckOutKeepsStoredCheckOut(t *testing.T) {
	// GIVEN: Monday closed at 18:00, Tuesday checked in
	f := newFixture(t)
	ctx := context.Background()
	mon, err := f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())
	require.NoError(t, err)
	f.clock.Advance(9 * time.Hour)
	_, err = f.sessions.CheckOut(ctx, mon.ID, office())
	require.NoError(t, err)
	f.clock.Set(monday.Add(24 * time.Hour))
	_, err = f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())
	require.NoError(t, err)

	// WHEN: Only Monday's check-in is moved to 10:00
	got, err := f.sessions.CorrectTimes(ctx, mon.ID, attendance.Correction{CheckIn: monday.Add(time.Hour)})
	require.NoError(t, err)

	// THEN: Still closed with its capture, hours recomputed from 18:00
	assert.False(t, got.IsOpen())
	assert.Equal(t, attendance.StateCorrected, got.State())
	assert.Equal(t, attendance.StatusFullDay, got.Status)
	assert.Equal(t, "8", got.Hours().String())
	assert.Equal(t, "photo.jpg", got.CheckOutPhotoRef)
	assert.NotNil(t, got.CheckOutLocation)

	stored, err := f.sessions.GetSession(ctx, mon.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CheckOutTime)
	assert.Equal(t, monday.Add(9*time.Hour), *stored.CheckOutTime)

	// AND: Tuesday is the only open session
	open, err := f.sessions.OpenSession(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, generic.NewDate(2024, 3, 12), open.Date)
}

func TestCorrectTimes_CheckInPastStoredCheckOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())
	require.NoError(t, err)
	f.clock.Advance(8 * time.Hour)
	_, err = f.sessions.CheckOut(ctx, s.ID, office())
	require.NoError(t, err)

	_, err = f.sessions.CorrectTimes(ctx, s.ID, attendance.Correction{CheckIn: monday.Add(8 * time.Hour)})

	var tr *attendance.InvalidTimeRangeError
	require.ErrorAs(t, err, &tr)
	assert.Equal(t, monday.Add(8*time.Hour), tr.CheckOut)
}

func TestCorrectTimes_OpenSessionStaysOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())
	require.NoError(t, err)

	got, err := f.sessions.CorrectTimes(ctx, s.ID, attendance.Correction{CheckIn: monday.Add(-time.Hour)})
	require.NoError(t, err)

	assert.True(t, got.IsOpen())
	assert.Equal(t, attendance.StateOpen, got.State())
	assert.Equal(t, attendance.StatusPresent, got.Status)
	assert.Nil(t, got.ActualWorkingHours)
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())
	require.NoError(t, err)

	require.NoError(t, f.sessions.DeleteSession(ctx, s.ID))

	_, err = f.sessions.GetSession(ctx, s.ID)
	assert.ErrorIs(t, err, generic.ErrSessionNotFound)
	err = f.sessions.DeleteSession(ctx, s.ID)
	assert.True(t, errors.Is(err, generic.ErrSessionNotFound))

	// Deleting the only session frees the day.
	_, err = f.sessions.CheckIn(ctx, "w1", f.sessions.Today(), office())
	assert.NoError(t, err)
	assert.Len(t, f.inv.calls, 3)
}

func TestListSessions_InvertedPeriod(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.ListSessions(context.Background(), "w1", generic.Period{
		Start: generic.NewDate(2024, 3, 10),
		End:   generic.NewDate(2024, 3, 1),
	})
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}
