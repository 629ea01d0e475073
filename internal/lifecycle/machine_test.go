package lifecycle

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"leakdesk/internal/apperr"
	"leakdesk/internal/cache"
	"leakdesk/internal/indicator"
	"leakdesk/internal/models"
	"leakdesk/internal/remote"
	"leakdesk/internal/repository"
	"leakdesk/internal/repository/memory"
)

type fakeRemote struct {
	mu   sync.Mutex
	sent []remote.Mutation
	err  error
	// onSubmit runs before the answer, standing in for a poll that lands
	// while the request is in flight.
	onSubmit func()
}

func (f *fakeRemote) Submit(_ context.Context, m remote.Mutation) (remote.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	if f.onSubmit != nil {
		f.onSubmit()
	}
	if f.err != nil {
		return remote.Ack{}, f.err
	}
	return remote.Ack{Status: "success", Endpoint: "e1"}, nil
}

type fakeRefresher struct{ delays []time.Duration }

func (f *fakeRefresher) RefreshAfter(d time.Duration) bool {
	f.delays = append(f.delays, d)
	return true
}

type fakeNotifier struct {
	quotaErr error
	reserved int
	released int
	sent     []models.EmailType
}

func (f *fakeNotifier) Reserve(context.Context) error {
	if f.quotaErr != nil {
		return f.quotaErr
	}
	f.reserved++
	return nil
}

func (f *fakeNotifier) Release(context.Context) { f.released++ }

func (f *fakeNotifier) Notify(_ context.Context, _ models.Ticket, typ models.EmailType, _ []models.Account) error {
	f.sent = append(f.sent, typ)
	return nil
}

type fakePhotos struct{}

func (fakePhotos) Upload(_ context.Context, _, group, name string) string {
	return "https://cdn/" + group + "/" + name
}

var (
	store = models.Account{ID: "toko-1", Name: "Toko Mawar", Role: models.RoleStore}
	admin = models.Account{ID: "bram", Name: "BRAM (ADMIN)", Role: models.RoleAdmin}
	now   = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
)

type harness struct {
	m       *Machine
	cache   *cache.Cache
	remote  *fakeRemote
	refresh *fakeRefresher
	journal *memory.JournalRepo
	clock   clockwork.FakeClock
}

func newHarness(t *testing.T, opt Options, n Notifier) *harness {
	t.Helper()
	h := &harness{
		cache:   cache.New(),
		remote:  &fakeRemote{},
		refresh: &fakeRefresher{},
		journal: memory.NewJournalRepo(),
		clock:   clockwork.NewFakeClockAt(now),
	}
	h.m = New(Deps{
		Cache:    h.cache,
		Remote:   h.remote,
		Refresh:  h.refresh,
		Photos:   fakePhotos{},
		Notifier: n,
		Catalog:  indicator.Default(),
		Journal:  h.journal,
		Clock:    h.clock,
		Log:      zerolog.Nop(),
	}, opt)
	return h
}

func (h *harness) seed(t models.Ticket) {
	t.Normalize()
	h.cache.Prepend(t)
}

func (h *harness) status(t *testing.T, id string) models.Status {
	t.Helper()
	tk, ok := h.cache.Ticket(id)
	if !ok {
		t.Fatalf("ticket %s not in cache", id)
	}
	return tk.Status
}

func firstIndicator() string { return indicator.Default().Entries()[0].Indicator }

func TestNewTicketID(t *testing.T) {
	re := regexp.MustCompile(`^TKT-[0-9A-F]{8}$`)
	a, b := NewTicketID(), NewTicketID()
	if !re.MatchString(a) {
		t.Errorf("NewTicketID = %q", a)
	}
	if a == b {
		t.Error("two ids are equal")
	}
}

func TestCreate_EndToEnd(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	ctx := context.Background()
	epoch := h.cache.Epoch()

	tk, err := h.m.Create(ctx, store, Draft{Indicator: firstIndicator(), Date: "2026-03-10"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// An in-flight poll is not invalidated by a local mutation.
	if got := h.cache.Epoch(); got != epoch {
		t.Errorf("epoch = %d after Create, want %d", got, epoch)
	}

	mine := h.cache.ForStore("TOKO-1 ")
	if len(mine) != 1 || mine[0].ID != tk.ID || mine[0].Status != models.StatusPending {
		t.Fatalf("store view = %+v, want exactly one PENDING %s", mine, tk.ID)
	}
	if tk.RiskLevel != "P1 - CRITICAL" || tk.Urgency != models.UrgencyHigh {
		t.Errorf("derived = %q/%q", tk.RiskLevel, tk.Urgency)
	}
	if tk.Department != models.Unset || tk.CompletionDate != models.Unset {
		t.Errorf("unset fields = %q/%q, want sentinel", tk.Department, tk.CompletionDate)
	}
	if tk.Location != "Berdasarkan Indikator" {
		t.Errorf("Location = %q", tk.Location)
	}

	if len(h.remote.sent) != 1 {
		t.Fatalf("mutations = %d, want 1", len(h.remote.sent))
	}
	if m := h.remote.sent[0]; m.Action != remote.ActionAdd || m.EmailType != models.EmailNew {
		t.Errorf("mutation = %s/%s", m.Action, m.EmailType)
	}
	if !reflect.DeepEqual(h.refresh.delays, []time.Duration{3 * time.Second}) {
		t.Errorf("grace polls = %v, want [3s]", h.refresh.delays)
	}

	// The server reflects the ticket with drifted casing; still one entry.
	echo := tk
	echo.ID = " " + strings.ToLower(tk.ID) + " "
	if _, err := h.cache.Apply(h.cache.Epoch(), []models.Ticket{echo}, nil, now); err != nil {
		t.Fatal(err)
	}
	if got := h.cache.ForStore("toko-1"); len(got) != 1 {
		t.Errorf("after poll store view has %d tickets, want 1", len(got))
	}
}

func TestCreate_WithPhotos(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	tk, err := h.m.Create(context.Background(), store, Draft{
		Indicator: firstIndicator(),
		PhotoURLs: []string{"data:image/jpeg;base64,aGVsbG8=", "https://drive/x"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tk.Date != "2026-03-10" {
		t.Errorf("Date = %q, want today", tk.Date)
	}
	if tk.PhotoURLs[0] != "https://cdn/TOKO MAWAR/IMG_"+tk.ID+"_1_"+strconv.FormatInt(now.UnixMilli(), 10) || tk.PhotoURLs[1] != "https://drive/x" {
		t.Errorf("photos = %v", tk.PhotoURLs)
	}
	if !reflect.DeepEqual(h.refresh.delays, []time.Duration{8 * time.Second}) {
		t.Errorf("grace polls = %v, want [8s]", h.refresh.delays)
	}
}

func TestCreate_Validation(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	_, err := h.m.Create(context.Background(), store, Draft{Indicator: "atap hilang", Date: "2026-04-01"})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Create = %v, want ValidationError", err)
	}
	if !reflect.DeepEqual(ve.Fields, []string{"indicator", "date"}) {
		t.Errorf("Fields = %v", ve.Fields)
	}
	if h.cache.Len() != 0 || len(h.remote.sent) != 0 {
		t.Error("invalid draft reached cache or remote")
	}
}

func TestRoles(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	ctx := context.Background()
	h.seed(models.Ticket{ID: "T1", StoreID: "toko-1", Status: models.StatusPending})

	if _, err := h.m.Create(ctx, admin, Draft{Indicator: firstIndicator()}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("admin Create = %v, want ErrForbidden", err)
	}
	if _, err := h.m.Schedule(ctx, store, "T1", Plan{}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("store Schedule = %v, want ErrForbidden", err)
	}
	if _, err := h.m.Finish(ctx, store, "T1", "done"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("store Finish = %v, want ErrForbidden", err)
	}
	if _, err := h.m.Schedule(ctx, admin, "nope", Plan{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Schedule(unknown) = %v, want ErrNotFound", err)
	}
}

func TestSchedule_DepartmentUnset(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.seed(models.Ticket{ID: "T1", StoreID: "toko-1", Status: models.StatusPending, Date: "2026-03-01"})

	_, err := h.m.Schedule(context.Background(), admin, "T1", Plan{PlannedDate: "2026-03-11", TargetDate: "2026-03-12"})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Schedule = %v, want ValidationError", err)
	}
	if !reflect.DeepEqual(ve.Fields, []string{"department"}) {
		t.Errorf("Fields = %v, want [department]", ve.Fields)
	}
	tk, _ := h.cache.Ticket("T1")
	if tk.Status != models.StatusPending || tk.PlannedDate != models.Unset {
		t.Errorf("ticket partially applied: %+v", tk)
	}
	if len(h.remote.sent) != 0 {
		t.Error("invalid schedule was submitted")
	}
}

func TestSchedule_MissingEverything(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.seed(models.Ticket{ID: "T1", Status: models.StatusPending})

	_, err := h.m.Schedule(context.Background(), admin, "T1", Plan{TargetDate: "soon"})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Schedule = %v, want ValidationError", err)
	}
	if want := []string{"department", "plannedDate", "targetDate"}; !reflect.DeepEqual(ve.Fields, want) {
		t.Errorf("Fields = %v, want %v", ve.Fields, want)
	}
}

func TestSchedule_AndEdit(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	ctx := context.Background()
	h.seed(models.Ticket{ID: "T1", StoreID: "toko-1", Status: models.StatusPending, Date: "2026-03-01"})

	if _, err := h.m.EditSchedule(ctx, admin, "T1", Plan{Department: "GA", PlannedDate: "2026-03-11", TargetDate: "2026-03-12"}); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("EditSchedule on PENDING = %v, want ErrInvalidTransition", err)
	}

	tk, err := h.m.Schedule(ctx, admin, "t1", Plan{Department: "GA", PlannedDate: "2026-03-11", TargetDate: "2026-03-12"})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if tk.Status != models.StatusOnProgress || tk.PIC != "BRAM" {
		t.Errorf("scheduled = %s pic %q", tk.Status, tk.PIC)
	}
	if tk.UpdatedAt != now.Format(models.TimestampLayout) {
		t.Errorf("UpdatedAt = %q", tk.UpdatedAt)
	}

	if _, err := h.m.Schedule(ctx, admin, "T1", Plan{}); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("second Schedule = %v, want ErrInvalidTransition", err)
	}

	tk, err = h.m.EditSchedule(ctx, admin, "T1", Plan{TargetDate: "2026-03-20", PIC: "SEPTIAN"})
	if err != nil {
		t.Fatalf("EditSchedule: %v", err)
	}
	if tk.Status != models.StatusOnProgress || tk.TargetDate != "2026-03-20" || tk.PIC != "SEPTIAN" {
		t.Errorf("edited = %+v", tk)
	}

	var types []models.EmailType
	for _, m := range h.remote.sent {
		types = append(types, m.EmailType)
	}
	if want := []models.EmailType{models.EmailScheduled, models.EmailScheduled}; !reflect.DeepEqual(types, want) {
		t.Errorf("email intents = %v, want %v", types, want)
	}
	if !reflect.DeepEqual(h.refresh.delays, []time.Duration{2 * time.Second, 2 * time.Second}) {
		t.Errorf("grace polls = %v", h.refresh.delays)
	}
}

func TestSchedule_TargetBeforePlanned(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.seed(models.Ticket{ID: "T1", Status: models.StatusPending})
	_, err := h.m.Schedule(context.Background(), admin, "T1", Plan{Department: "GA", PlannedDate: "2026-03-12", TargetDate: "2026-03-11"})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || !reflect.DeepEqual(ve.Fields, []string{"targetDate"}) {
		t.Errorf("Schedule = %v, want ValidationError on targetDate", err)
	}
}

func TestFinish(t *testing.T) {
	h := newHarness(t, Options{RequireClosure: true, MinClosureLength: 10}, nil)
	ctx := context.Background()
	h.seed(models.Ticket{ID: "T1", StoreID: "toko-1", Status: models.StatusPending, Date: "2026-03-01"})

	if _, err := h.m.Finish(ctx, admin, "T1", "plafon sudah diganti"); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("Finish on PENDING = %v, want ErrInvalidTransition", err)
	}
	if _, err := h.m.Schedule(ctx, admin, "T1", Plan{Department: "SITEDEV", PlannedDate: "2026-03-05", TargetDate: "2026-03-09"}); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	for _, note := range []string{"", "-", "singkat"} {
		if _, err := h.m.Finish(ctx, admin, "T1", note); !apperr.IsValidation(err) {
			t.Errorf("Finish(%q) = %v, want ValidationError", note, err)
		}
	}
	if got := h.status(t, "T1"); got != models.StatusOnProgress {
		t.Fatalf("status after rejected finish = %s", got)
	}

	tk, err := h.m.Finish(ctx, admin, "T1", "plafon sudah diganti")
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if tk.Status != models.StatusCompleted || tk.ClosureNote != "plafon sudah diganti" {
		t.Errorf("finished = %+v", tk)
	}
	done, ok := models.ParseDate(tk.CompletionDate)
	reported, _ := models.ParseDate(tk.Date)
	if !ok || !done.After(reported) {
		t.Errorf("CompletionDate %q not after report date %q", tk.CompletionDate, tk.Date)
	}
	if last := h.remote.sent[len(h.remote.sent)-1]; last.EmailType != models.EmailCompleted {
		t.Errorf("email intent = %s, want COMPLETED", last.EmailType)
	}

	// COMPLETED is terminal.
	if _, err := h.m.Finish(ctx, admin, "T1", "plafon sudah diganti"); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("Finish again = %v", err)
	}
	if _, err := h.m.EditSchedule(ctx, admin, "T1", Plan{}); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("EditSchedule on COMPLETED = %v", err)
	}
	dept := "GA"
	if _, err := h.m.UpdateDetails(ctx, admin, "T1", Details{Department: &dept}); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("UpdateDetails on COMPLETED = %v", err)
	}
}

func TestFinish_ReportedInFuture(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.seed(models.Ticket{ID: "T1", Status: models.StatusOnProgress, Date: "2026-03-11"})
	_, err := h.m.Finish(context.Background(), admin, "T1", "")
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Fields[0] != "completionDate" {
		t.Errorf("Finish = %v, want ValidationError on completionDate", err)
	}
}

func TestFinish_ClosureOptional(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.seed(models.Ticket{ID: "T1", Status: models.StatusOnProgress, Date: "2026-03-01"})
	tk, err := h.m.Finish(context.Background(), admin, "T1", "")
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if tk.ClosureNote != models.Unset {
		t.Errorf("ClosureNote = %q, want sentinel", tk.ClosureNote)
	}
}

func TestUpdateDetails(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	ctx := context.Background()
	h.seed(models.Ticket{ID: "T1", Status: models.StatusPending})

	dept, bad := "HENDRI", "besok"
	if _, err := h.m.UpdateDetails(ctx, admin, "T1", Details{PlannedDate: &bad}); !apperr.IsValidation(err) {
		t.Errorf("UpdateDetails(bad date) = %v, want ValidationError", err)
	}
	if _, err := h.m.UpdateDetails(ctx, admin, "T1", Details{}); !apperr.IsValidation(err) {
		t.Errorf("UpdateDetails(empty) = %v, want ValidationError", err)
	}

	tk, err := h.m.UpdateDetails(ctx, admin, "T1", Details{Department: &dept})
	if err != nil {
		t.Fatalf("UpdateDetails: %v", err)
	}
	if tk.Department != "HENDRI" || tk.PIC != "BRAM" || tk.Status != models.StatusPending {
		t.Errorf("updated = %+v", tk)
	}
	if len(h.remote.sent) != 1 || h.remote.sent[0].EmailType != "" {
		t.Errorf("mutations = %+v, want one without email intent", h.remote.sent)
	}
}

func TestUpdateDetails_ScheduledKeepsPlan(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	ctx := context.Background()
	h.seed(models.Ticket{ID: "T1", Status: models.StatusOnProgress, Department: "GA", PIC: "BRAM",
		PlannedDate: "2026-03-11", TargetDate: "2026-03-12"})

	empty, early := "", "2026-03-01"
	tests := []struct {
		name string
		d    Details
		want []string
	}{
		{"clear department and planned", Details{Department: &empty, PlannedDate: &empty}, []string{"department", "plannedDate"}},
		{"clear target", Details{TargetDate: &empty}, []string{"targetDate"}},
		{"target before planned", Details{TargetDate: &early}, []string{"targetDate"}},
	}
	for _, tt := range tests {
		_, err := h.m.UpdateDetails(ctx, admin, "T1", tt.d)
		var ve *apperr.ValidationError
		if !errors.As(err, &ve) || !reflect.DeepEqual(ve.Fields, tt.want) {
			t.Errorf("%s: UpdateDetails = %v, want ValidationError on %v", tt.name, err, tt.want)
		}
	}
	tk, _ := h.cache.Ticket("T1")
	if tk.Department != "GA" || tk.PlannedDate != "2026-03-11" || tk.TargetDate != "2026-03-12" {
		t.Errorf("rejected edit reached the cache: %+v", tk)
	}
	if len(h.remote.sent) != 0 {
		t.Errorf("rejected edit submitted: %+v", h.remote.sent)
	}

	later := "2026-03-20"
	if _, err := h.m.UpdateDetails(ctx, admin, "T1", Details{TargetDate: &later}); err != nil {
		t.Errorf("valid edit = %v", err)
	}
}

func TestDatesInClockZone(t *testing.T) {
	wib := time.FixedZone("WIB", 7*3600)
	h := newHarness(t, Options{}, nil)
	ctx := context.Background()

	// 03:00 WIB is still the previous day in UTC.
	h.m.Clock = clockwork.NewFakeClockAt(time.Date(2026, 10, 18, 3, 0, 0, 0, wib))
	tk, err := h.m.Create(ctx, store, Draft{Indicator: firstIndicator()})
	if err != nil {
		t.Fatalf("Create at 03:00 WIB = %v", err)
	}
	if tk.Date != "2026-10-18" {
		t.Errorf("Date = %q, want the local day", tk.Date)
	}
	if _, err := h.m.Create(ctx, store, Draft{Indicator: firstIndicator(), Date: "2026-10-19"}); !apperr.IsValidation(err) {
		t.Errorf("Create(tomorrow) = %v, want ValidationError", err)
	}

	h.seed(models.Ticket{ID: "T1", Status: models.StatusOnProgress, Date: "2026-10-18"})
	h.m.Clock = clockwork.NewFakeClockAt(time.Date(2026, 10, 18, 5, 0, 0, 0, wib))
	if _, err := h.m.Finish(ctx, admin, "T1", ""); err != nil {
		t.Errorf("same-day Finish at 05:00 WIB = %v", err)
	}
}

func TestRemoteFailureKeepsOptimisticState(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.remote.err = &apperr.UnavailableError{Last: errors.New("dial tcp: i/o timeout"), Tried: 2}
	h.seed(models.Ticket{ID: "T1", Status: models.StatusPending})

	tk, err := h.m.Schedule(context.Background(), admin, "T1", Plan{Department: "GA", PlannedDate: "2026-03-11", TargetDate: "2026-03-12"})
	if !errors.Is(err, apperr.ErrSyncUnavailable) || !IsRemoteFailure(err) {
		t.Fatalf("Schedule = %v, want ErrSyncUnavailable", err)
	}
	if tk.Status != models.StatusOnProgress {
		t.Errorf("returned status = %s", tk.Status)
	}
	if got := h.status(t, "T1"); got != models.StatusOnProgress {
		t.Errorf("cached status = %s, want optimistic ON_PROGRESS", got)
	}
	if len(h.refresh.delays) != 0 {
		t.Errorf("grace poll scheduled after failure: %v", h.refresh.delays)
	}

	failed, _ := h.journal.List(context.Background(), repository.JournalFilter{Outcome: models.OutcomeFailed})
	if len(failed) != 1 || failed[0].TicketID != "T1" || failed[0].Payload == "" {
		t.Errorf("journal = %+v, want one failed entry with payload", failed)
	}
}

func TestRemoteQuotaRevertsCreate(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.remote.err = &apperr.UnavailableError{
		Last:   apperr.ErrAllEndpointsFailed,
		Remote: []*apperr.ApplicationError{{Endpoint: "e1", Message: "Error: LIMIT_EMAIL_TERCAPAI"}},
		Tried:  1,
	}
	_, err := h.m.Create(context.Background(), store, Draft{Indicator: firstIndicator()})
	if !errors.Is(err, apperr.ErrQuotaExceeded) {
		t.Fatalf("Create = %v, want ErrQuotaExceeded", err)
	}
	if h.cache.Len() != 0 {
		t.Errorf("cache size = %d, want 0", h.cache.Len())
	}
}

func TestRemoteQuotaRestoresSchedule(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.remote.err = &apperr.UnavailableError{
		Last:   apperr.ErrAllEndpointsFailed,
		Remote: []*apperr.ApplicationError{{Endpoint: "e1", Message: "LIMIT_EMAIL_TERCAPAI"}},
		Tried:  1,
	}
	h.seed(models.Ticket{ID: "T1", Status: models.StatusPending, UpdatedAt: "2026-03-01T00:00:00Z"})

	_, err := h.m.Schedule(context.Background(), admin, "T1", Plan{Department: "GA", PlannedDate: "2026-03-11", TargetDate: "2026-03-12"})
	if !errors.Is(err, apperr.ErrQuotaExceeded) {
		t.Fatalf("Schedule = %v, want ErrQuotaExceeded", err)
	}
	tk, _ := h.cache.Ticket("T1")
	if tk.Status != models.StatusPending || tk.Department != models.Unset || tk.UpdatedAt != "2026-03-01T00:00:00Z" {
		t.Errorf("ticket not restored: %+v", tk)
	}
}

func TestRemoteQuotaKeepsNewerPoll(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.remote.err = &apperr.UnavailableError{
		Last:   apperr.ErrAllEndpointsFailed,
		Remote: []*apperr.ApplicationError{{Endpoint: "e1", Message: "LIMIT_EMAIL_TERCAPAI"}},
		Tried:  1,
	}
	h.seed(models.Ticket{ID: "T1", Status: models.StatusPending, UpdatedAt: "2026-03-01T00:00:00Z"})

	server := models.Ticket{ID: "T1", Status: models.StatusPending, PIC: "SEPTIAN", UpdatedAt: "2026-03-10T09:29:00Z"}
	server.Normalize()
	h.remote.onSubmit = func() {
		if _, err := h.cache.Apply(h.cache.Epoch(), []models.Ticket{server}, nil, now); err != nil {
			t.Error(err)
		}
	}

	_, err := h.m.Schedule(context.Background(), admin, "T1", Plan{Department: "GA", PlannedDate: "2026-03-11", TargetDate: "2026-03-12"})
	if !errors.Is(err, apperr.ErrQuotaExceeded) {
		t.Fatalf("Schedule = %v, want ErrQuotaExceeded", err)
	}
	tk, _ := h.cache.Ticket("T1")
	if tk.PIC != "SEPTIAN" || tk.UpdatedAt != server.UpdatedAt {
		t.Errorf("revert overwrote the polled version: %+v", tk)
	}
}

func TestLocalNotify(t *testing.T) {
	n := &fakeNotifier{}
	h := newHarness(t, Options{NotifyLocally: true}, n)
	h.seed(models.Ticket{ID: "T1", Status: models.StatusPending})

	if _, err := h.m.Schedule(context.Background(), admin, "T1", Plan{Department: "GA", PlannedDate: "2026-03-11", TargetDate: "2026-03-12"}); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if h.remote.sent[0].EmailType != "" {
		t.Errorf("mutation carries emailType %q in local mode", h.remote.sent[0].EmailType)
	}
	if !reflect.DeepEqual(n.sent, []models.EmailType{models.EmailScheduled}) {
		t.Errorf("notified = %v", n.sent)
	}
	if n.reserved != 1 || n.released != 0 {
		t.Errorf("reserved %d released %d, want 1/0", n.reserved, n.released)
	}
}

func TestLocalNotify_ReleasesUnusedReservation(t *testing.T) {
	n := &fakeNotifier{}
	h := newHarness(t, Options{NotifyLocally: true}, n)
	ctx := context.Background()
	h.seed(models.Ticket{ID: "T1", Status: models.StatusPending, Date: "2026-03-01"})

	// Rejected by validation after the unit was taken.
	if _, err := h.m.Schedule(ctx, admin, "T1", Plan{PlannedDate: "2026-03-11"}); !apperr.IsValidation(err) {
		t.Fatalf("Schedule = %v, want ValidationError", err)
	}
	// Applied locally but never persisted.
	h.remote.err = &apperr.UnavailableError{Last: errors.New("connection refused"), Tried: 1}
	if _, err := h.m.Schedule(ctx, admin, "T1", Plan{Department: "GA", PlannedDate: "2026-03-11", TargetDate: "2026-03-12"}); !IsRemoteFailure(err) {
		t.Fatalf("Schedule = %v, want remote failure", err)
	}
	if _, err := h.m.Create(ctx, store, Draft{Indicator: firstIndicator()}); !IsRemoteFailure(err) {
		t.Fatalf("Create = %v, want remote failure", err)
	}
	if n.reserved != 3 || n.released != 3 || len(n.sent) != 0 {
		t.Errorf("reserved %d released %d sent %d, want 3/3/0", n.reserved, n.released, len(n.sent))
	}
}

func TestLocalQuotaAbortsEverything(t *testing.T) {
	n := &fakeNotifier{quotaErr: apperr.ErrQuotaExceeded}
	h := newHarness(t, Options{NotifyLocally: true}, n)
	ctx := context.Background()
	h.seed(models.Ticket{ID: "T1", Status: models.StatusPending})

	_, err := h.m.Schedule(ctx, admin, "T1", Plan{Department: "GA", PlannedDate: "2026-03-11", TargetDate: "2026-03-12"})
	if !errors.Is(err, apperr.ErrQuotaExceeded) {
		t.Fatalf("Schedule = %v, want ErrQuotaExceeded", err)
	}
	tk, _ := h.cache.Ticket("T1")
	if tk.Status != models.StatusPending || tk.Department != models.Unset {
		t.Errorf("ticket changed: %+v", tk)
	}
	if _, err := h.m.Create(ctx, store, Draft{Indicator: firstIndicator()}); !errors.Is(err, apperr.ErrQuotaExceeded) {
		t.Errorf("Create = %v, want ErrQuotaExceeded", err)
	}
	if h.cache.Len() != 1 || len(h.remote.sent) != 0 || len(n.sent) != 0 {
		t.Errorf("something was applied: cache %d, sent %d, notified %d", h.cache.Len(), len(h.remote.sent), len(n.sent))
	}

	// Inline edits do not notify and are not gated by the quota.
	dept := "GA"
	if _, err := h.m.UpdateDetails(ctx, admin, "T1", Details{Department: &dept}); err != nil {
		t.Errorf("UpdateDetails = %v", err)
	}
}
