package attendance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIssuer struct {
	err   error
	calls []string
}

func (s *stubIssuer) Issue(baseURL, id string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.calls = append(s.calls, baseURL+"/student/"+id)
	return "data:image/png;base64,c3R1Yg==", nil
}

func newTestService(t *testing.T) (*Service, *Repository, *stubIssuer) {
	t.Helper()
	repo := newTestRepo(t)
	issuer := &stubIssuer{}
	return NewService(repo, NewIDAllocator(), issuer), repo, issuer
}

func TestService_RegisterWithSuppliedID(t *testing.T) {
	svc, repo, issuer := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterRequest{ID: "s1", Name: "Alice", Email: "a@x.com"}, "http://localhost:3000")
	require.NoError(t, err)

	assert.Equal(t, "s1", reg.ID)
	assert.True(t, strings.HasPrefix(reg.QRDataURL, "data:image/png;base64,"))
	assert.Equal(t, []string{"http://localhost:3000/student/s1"}, issuer.calls)

	st, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", st.Name)
}

func TestService_RegisterGeneratesUnusedIDs(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		reg, err := svc.Register(ctx, RegisterRequest{Name: "N", Email: "n@x.com"}, "http://h")
		require.NoError(t, err)
		require.NotEmpty(t, reg.ID)
		require.False(t, seen[reg.ID], "id %s reused", reg.ID)
		seen[reg.ID] = true
	}
}

func TestService_RegisterSkipsGeneratedIDThatIsTaken(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	fixed := time.UnixMilli(5_000)
	svc.ids = &IDAllocator{now: func() time.Time { return fixed }}

	require.NoError(t, repo.Upsert(ctx, "ID5000", "Taken", "t@x.com"))

	reg, err := svc.Register(ctx, RegisterRequest{Name: "New", Email: "n@x.com"}, "http://h")
	require.NoError(t, err)
	assert.Equal(t, "ID5001", reg.ID)

	st, err := repo.Get(ctx, "ID5000")
	require.NoError(t, err)
	assert.Equal(t, "Taken", st.Name, "existing student must be untouched")
}

func TestService_ReRegisterResetsAttendance(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{ID: "s1", Name: "Alice", Email: "a@x.com"}, "http://h")
	require.NoError(t, err)
	_, err = svc.Mark(ctx, "s1")
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{ID: "s1", Name: "Bob", Email: "b@x.com"}, "http://h")
	require.NoError(t, err)

	st, err := svc.Student(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Bob", st.Name)
	assert.Equal(t, "b@x.com", st.Email)
	assert.False(t, st.Attendance)
	assert.Nil(t, st.Timestamp)
}

func TestService_RegisterQRFailure(t *testing.T) {
	svc, repo, issuer := newTestService(t)
	issuer.err = errors.New("too long")

	_, err := svc.Register(context.Background(), RegisterRequest{ID: "s1"}, "http://h")
	assert.EqualError(t, err, "too long")

	exists, err := repo.Exists(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, exists, "no row is left behind when the QR code fails")
}

func TestService_RegisterKeepsSuppliedIDVerbatim(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterRequest{ID: " s2 ", Name: "Sam", Email: "s@x.com"}, "http://h")
	require.NoError(t, err)
	assert.Equal(t, " s2 ", reg.ID)

	_, err = repo.Get(ctx, " s2 ")
	require.NoError(t, err)
	_, err = repo.Get(ctx, "s2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_MarkTwice(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	clock := time.Date(2026, 10, 19, 9, 30, 0, 123_456_789, time.UTC)
	svc.now = func() time.Time { return clock }

	_, err := svc.Register(ctx, RegisterRequest{ID: "s1", Name: "Alice", Email: "a@x.com"}, "http://h")
	require.NoError(t, err)

	at, err := svc.Mark(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19T09:30:00.123Z", FormatTimestamp(at))

	clock = clock.Add(time.Minute)
	_, err = svc.Mark(ctx, "s1")
	assert.ErrorIs(t, err, ErrAlreadyMarked)

	st, err := svc.Student(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19T09:30:00.123Z", st.TimestampString())
}

func TestService_MarkUnknown(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Mark(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := svc.Students(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestService_ConcurrentFirstMarks(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{ID: "s1", Name: "Alice", Email: "a@x.com"}, "http://h")
	require.NoError(t, err)

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		already   int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Mark(ctx, "s1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrAlreadyMarked):
				already++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, already)
}

func TestService_StudentsAfterMarkingOne(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"A", "B", "C"} {
		_, err := svc.Register(ctx, RegisterRequest{ID: id, Name: id, Email: id + "@x.com"}, "http://h")
		require.NoError(t, err)
	}
	_, err := svc.Mark(ctx, "B")
	require.NoError(t, err)

	all, err := svc.Students(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	status := map[string]string{}
	for _, st := range all {
		status[st.ID] = st.Status()
	}
	assert.Equal(t, map[string]string{"A": "Absent", "B": "Present", "C": "Absent"}, status)
}
