package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/classkit/classkit/internal/model"
	"github.com/classkit/classkit/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// In-memory stand-ins for the pgx repositories. They mimic the store
// contract the services rely on: conditional writes report false instead of
// failing when their filter does not match, and the two unique keys behave
// like their database indexes.

type fakeDB struct {
	mu     sync.Mutex
	nextID int64

	events      map[int64]*model.Event
	obligations map[int64]*model.Obligation
	slots       map[int64]*model.InterviewSlot

	users    map[int64]*model.User
	students map[int64]*model.Student
	classes  map[int64]*model.Class

	classTeachers    map[int64]map[int64]bool // class → teachers
	classStudents    map[int64]map[int64]bool // class → students
	classGuardians   map[int64]map[int64]bool // class → guardians
	studentGuardians map[int64]map[int64]bool // student → guardians
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		events:           map[int64]*model.Event{},
		obligations:      map[int64]*model.Obligation{},
		slots:            map[int64]*model.InterviewSlot{},
		users:            map[int64]*model.User{},
		students:         map[int64]*model.Student{},
		classes:          map[int64]*model.Class{},
		classTeachers:    map[int64]map[int64]bool{},
		classStudents:    map[int64]map[int64]bool{},
		classGuardians:   map[int64]map[int64]bool{},
		studentGuardians: map[int64]map[int64]bool{},
	}
}

func (db *fakeDB) id() int64 {
	db.nextID++
	return db.nextID
}

// --- seeding helpers -------------------------------------------------------

func (db *fakeDB) addUser(name, email string, teacher bool) int64 {
	id := db.id()
	db.users[id] = &model.User{ID: id, FullName: name, Email: email, IsTeacher: teacher, CreatedAt: time.Now()}
	return id
}

func (db *fakeDB) addClass(name string, teacherID int64) int64 {
	id := db.id()
	db.classes[id] = &model.Class{ID: id, SchoolID: 1, Name: name, CreatedAt: time.Now()}
	db.classTeachers[id] = map[int64]bool{teacherID: true}
	db.classStudents[id] = map[int64]bool{}
	db.classGuardians[id] = map[int64]bool{}
	return id
}

func (db *fakeDB) addStudent(name string, classID int64) int64 {
	id := db.id()
	db.students[id] = &model.Student{ID: id, SchoolID: 1, FullName: name, CreatedAt: time.Now()}
	db.classStudents[classID][id] = true
	db.studentGuardians[id] = map[int64]bool{}
	return id
}

func (db *fakeDB) linkGuardian(studentID, guardianID int64) {
	db.studentGuardians[studentID][guardianID] = true
}

func (db *fakeDB) joinClass(classID, guardianID int64) {
	db.classGuardians[classID][guardianID] = true
}

// --- events ----------------------------------------------------------------

type fakeEventStore struct{ db *fakeDB }

func (f *fakeEventStore) Create(_ context.Context, ev *model.Event) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	ev.ID = f.db.id()
	ev.CreatedAt = time.Now()
	ev.UpdatedAt = ev.CreatedAt
	f.db.events[ev.ID] = copyEvent(ev)
	return nil
}

func (f *fakeEventStore) GetByID(_ context.Context, id int64) (*model.Event, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	ev, ok := f.db.events[id]
	if !ok {
		return nil, nil
	}
	return copyEvent(ev), nil
}

func (f *fakeEventStore) Update(_ context.Context, ev *model.Event) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.events[ev.ID]; !ok {
		return false, nil
	}
	ev.UpdatedAt = time.Now()
	f.db.events[ev.ID] = copyEvent(ev)
	return true, nil
}

func (f *fakeEventStore) Delete(_ context.Context, id int64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.events[id]; !ok {
		return false, nil
	}
	delete(f.db.events, id)
	return true, nil
}

func (f *fakeEventStore) ListByClass(_ context.Context, classID int64) ([]*model.Event, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.Event
	for _, ev := range f.db.events {
		if ev.ClassID != nil && *ev.ClassID == classID {
			out = append(out, copyEvent(ev))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func copyEvent(ev *model.Event) *model.Event {
	dup := *ev
	return &dup
}

// --- obligations -----------------------------------------------------------

type fakeObligationStore struct{ db *fakeDB }

func (f *fakeObligationStore) Insert(_ context.Context, ob *model.Obligation) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.tripleExists(ob.EventID, ob.StudentID, ob.GuardianID) != nil {
		return false, nil
	}
	ob.ID = f.db.id()
	ob.CreatedAt = time.Now()
	f.db.obligations[ob.ID] = copyObligation(ob)
	return true, nil
}

func (f *fakeObligationStore) GetByID(_ context.Context, id int64) (*model.Obligation, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	ob, ok := f.db.obligations[id]
	if !ok {
		return nil, nil
	}
	return copyObligation(ob), nil
}

func (f *fakeObligationStore) GetSignedByEventStudent(_ context.Context, eventID, studentID int64) (*model.Obligation, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, ob := range f.db.obligations {
		if ob.EventID == eventID && ob.StudentID != nil && *ob.StudentID == studentID && ob.IsSigned() {
			return copyObligation(ob), nil
		}
	}
	return nil, nil
}

func (f *fakeObligationStore) ListByGuardian(_ context.Context, guardianID int64) ([]*model.Obligation, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.Obligation
	for _, ob := range f.db.obligations {
		if ob.GuardianID == guardianID {
			out = append(out, copyObligation(ob))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeObligationStore) ListByEvent(_ context.Context, eventID int64) ([]*model.Obligation, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.Obligation
	for _, ob := range f.db.obligations {
		if ob.EventID == eventID {
			out = append(out, copyObligation(ob))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeObligationStore) MarkSigned(_ context.Context, id, guardianID int64, form []byte, method *model.PaymentMethod, signedAt time.Time) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	ob, ok := f.db.obligations[id]
	if !ok || ob.GuardianID != guardianID || ob.Status != model.ObligationStatusPending {
		return false, nil
	}
	ob.Status = model.ObligationStatusSigned
	ob.SignedAt = &signedAt
	ob.SubmittedForm = form
	ob.PaymentMethod = method
	return true, nil
}

func (f *fakeObligationStore) MarkUnsigned(_ context.Context, id, guardianID int64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	ob, ok := f.db.obligations[id]
	if !ok || ob.GuardianID != guardianID || ob.Status != model.ObligationStatusSigned {
		return false, nil
	}
	ob.Status = model.ObligationStatusPending
	ob.SignedAt = nil
	ob.SubmittedForm = nil
	ob.PaymentMethod = nil
	ob.CashReceivedAt = nil
	return true, nil
}

func (f *fakeObligationStore) SetCashReceived(_ context.Context, id int64, receivedAt *time.Time) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	ob, ok := f.db.obligations[id]
	if !ok || ob.Status != model.ObligationStatusSigned {
		return false, nil
	}
	if ob.ResolvedPaymentMethod() != model.PaymentMethodCash {
		return false, nil
	}
	ob.CashReceivedAt = receivedAt
	return true, nil
}

func (f *fakeObligationStore) UpsertTeacherSigned(_ context.Context, ob *model.Obligation) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	existing := f.tripleExists(ob.EventID, ob.StudentID, ob.GuardianID)
	if existing == nil {
		ob.ID = f.db.id()
		ob.CreatedAt = time.Now()
		f.db.obligations[ob.ID] = copyObligation(ob)
		return true, nil
	}
	if existing.Status != model.ObligationStatusPending {
		return false, nil
	}
	existing.Status = model.ObligationStatusSigned
	existing.TeacherSubmitted = true
	existing.SignedAt = ob.SignedAt
	existing.SubmittedForm = ob.SubmittedForm
	existing.PaymentMethod = ob.PaymentMethod
	ob.ID = existing.ID
	ob.CreatedAt = existing.CreatedAt
	return true, nil
}

func (f *fakeObligationStore) DeleteByEvent(_ context.Context, eventID int64) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for id, ob := range f.db.obligations {
		if ob.EventID == eventID {
			delete(f.db.obligations, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeObligationStore) DeleteByPair(_ context.Context, studentID, guardianID int64) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for id, ob := range f.db.obligations {
		if ob.GuardianID == guardianID && ob.StudentID != nil && *ob.StudentID == studentID {
			delete(f.db.obligations, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeObligationStore) tripleExists(eventID int64, studentID *int64, guardianID int64) *model.Obligation {
	for _, ob := range f.db.obligations {
		if ob.EventID != eventID || ob.GuardianID != guardianID {
			continue
		}
		if studentID == nil || ob.StudentID == nil {
			continue
		}
		if *ob.StudentID == *studentID {
			return ob
		}
	}
	return nil
}

func copyObligation(ob *model.Obligation) *model.Obligation {
	dup := *ob
	return &dup
}

// --- interview slots -------------------------------------------------------

type fakeSlotStore struct{ db *fakeDB }

func (f *fakeSlotStore) Create(_ context.Context, slot *model.InterviewSlot) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	slot.ID = f.db.id()
	slot.CreatedAt = time.Now()
	f.db.slots[slot.ID] = copySlot(slot)
	return nil
}

func (f *fakeSlotStore) GetByID(_ context.Context, id int64) (*model.InterviewSlot, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	slot, ok := f.db.slots[id]
	if !ok {
		return nil, nil
	}
	return copySlot(slot), nil
}

func (f *fakeSlotStore) ListByClass(_ context.Context, classID int64) ([]*model.InterviewSlot, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.InterviewSlot
	for _, slot := range f.db.slots {
		if slot.ClassID == classID {
			out = append(out, copySlot(slot))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (f *fakeSlotStore) GetClaimedByClassStudent(_ context.Context, classID, studentID int64) (*model.InterviewSlot, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if slot := f.claimedBy(classID, studentID); slot != nil {
		return copySlot(slot), nil
	}
	return nil, nil
}

func (f *fakeSlotStore) Claim(_ context.Context, slotID, studentID, guardianID int64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	slot, ok := f.db.slots[slotID]
	if !ok || slot.StudentID != nil {
		return false, nil
	}
	// unique (class_id, student_id) index
	if f.claimedBy(slot.ClassID, studentID) != nil {
		return false, nil
	}
	slot.StudentID = &studentID
	slot.GuardianID = &guardianID
	return true, nil
}

func (f *fakeSlotStore) BookManual(_ context.Context, slotID, studentID int64, name string, email *string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	slot, ok := f.db.slots[slotID]
	if !ok || slot.StudentID != nil {
		return false, nil
	}
	if f.claimedBy(slot.ClassID, studentID) != nil {
		return false, nil
	}
	slot.StudentID = &studentID
	slot.ManualGuardianName = &name
	slot.ManualGuardianEmail = email
	return true, nil
}

func (f *fakeSlotStore) Release(_ context.Context, claimed *model.InterviewSlot) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	slot, ok := f.db.slots[claimed.ID]
	if !ok || slot.StudentID == nil || claimed.StudentID == nil {
		return false, nil
	}
	// same claimant as the caller's read, like the conditional UPDATE filter
	if *slot.StudentID != *claimed.StudentID ||
		!int64PtrEqual(slot.GuardianID, claimed.GuardianID) ||
		!strPtrEqual(slot.ManualGuardianEmail, claimed.ManualGuardianEmail) {
		return false, nil
	}
	slot.StudentID = nil
	slot.GuardianID = nil
	slot.ManualGuardianName = nil
	slot.ManualGuardianEmail = nil
	return true, nil
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (f *fakeSlotStore) Delete(_ context.Context, id int64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.slots[id]; !ok {
		return false, nil
	}
	delete(f.db.slots, id)
	return true, nil
}

func (f *fakeSlotStore) DeleteAllForClass(_ context.Context, classID int64) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for id, slot := range f.db.slots {
		if slot.ClassID == classID {
			delete(f.db.slots, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeSlotStore) DeleteBatch(_ context.Context, classID int64, batchID uuid.UUID) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for id, slot := range f.db.slots {
		if slot.ClassID == classID && slot.BatchID == batchID {
			delete(f.db.slots, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeSlotStore) claimedBy(classID, studentID int64) *model.InterviewSlot {
	for _, slot := range f.db.slots {
		if slot.ClassID == classID && slot.StudentID != nil && *slot.StudentID == studentID {
			return slot
		}
	}
	return nil
}

func copySlot(slot *model.InterviewSlot) *model.InterviewSlot {
	dup := *slot
	return &dup
}

// --- roster ----------------------------------------------------------------

type fakeRosterStore struct{ db *fakeDB }

func (f *fakeRosterStore) GetUser(_ context.Context, id int64) (*model.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[id]
	if !ok {
		return nil, nil
	}
	dup := *u
	return &dup, nil
}

func (f *fakeRosterStore) GetStudent(_ context.Context, id int64) (*model.Student, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.students[id]
	if !ok {
		return nil, nil
	}
	dup := *s
	return &dup, nil
}

func (f *fakeRosterStore) GetClass(_ context.Context, id int64) (*model.Class, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.classes[id]
	if !ok {
		return nil, nil
	}
	dup := *c
	return &dup, nil
}

func (f *fakeRosterStore) ListClassStudents(_ context.Context, classID int64) ([]*model.Student, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.Student
	for id := range f.db.classStudents[classID] {
		dup := *f.db.students[id]
		out = append(out, &dup)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRosterStore) ListStudentGuardians(_ context.Context, studentID int64) ([]*model.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.User
	for id := range f.db.studentGuardians[studentID] {
		dup := *f.db.users[id]
		out = append(out, &dup)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRosterStore) IsTeacherOfClass(_ context.Context, teacherID, classID int64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.classTeachers[classID][teacherID], nil
}

func (f *fakeRosterStore) IsStudentInClass(_ context.Context, studentID, classID int64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.classStudents[classID][studentID], nil
}

func (f *fakeRosterStore) IsGuardianInClass(_ context.Context, guardianID, classID int64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.classGuardians[classID][guardianID], nil
}

func (f *fakeRosterStore) IsGuardianOfStudent(_ context.Context, guardianID, studentID int64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.studentGuardians[studentID][guardianID], nil
}

func (f *fakeRosterStore) LinkGuardian(_ context.Context, studentID, guardianID int64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.studentGuardians[studentID] == nil {
		f.db.studentGuardians[studentID] = map[int64]bool{}
	}
	if f.db.studentGuardians[studentID][guardianID] {
		return false, nil
	}
	f.db.studentGuardians[studentID][guardianID] = true
	return true, nil
}

func (f *fakeRosterStore) UnlinkGuardian(_ context.Context, studentID, guardianID int64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if !f.db.studentGuardians[studentID][guardianID] {
		return false, nil
	}
	delete(f.db.studentGuardians[studentID], guardianID)
	return true, nil
}

// --- inbox -----------------------------------------------------------------

type fakeInboxStore struct{ db *fakeDB }

func (f *fakeInboxStore) GuardianInbox(_ context.Context, guardianID int64) ([]*model.InboxEntry, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.InboxEntry
	for _, ob := range f.db.obligations {
		if ob.GuardianID != guardianID {
			continue
		}
		entry := &model.InboxEntry{Obligation: copyObligation(ob)}
		if ev, ok := f.db.events[ob.EventID]; ok {
			entry.EventTitle = ev.Title
			entry.EventStartAt = ev.StartAt
			entry.FormDueDate = ev.FormDueDate
		}
		if c, ok := f.db.classes[ob.ClassID]; ok {
			entry.ClassName = c.Name
		}
		if ob.StudentID != nil {
			if s, ok := f.db.students[*ob.StudentID]; ok {
				entry.StudentName = s.FullName
			}
		}
		out = append(out, entry)
	}
	// pending first, then by id
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Obligation.Status == model.ObligationStatusPending, out[j].Obligation.Status == model.ObligationStatusPending
		if pi != pj {
			return pi
		}
		return out[i].Obligation.ID < out[j].Obligation.ID
	})
	return out, nil
}

// --- fixture ---------------------------------------------------------------

// formEventInput is a future class event that requires a signed form.
func formEventInput(classID int64) service.EventInput {
	start := time.Now().Add(24 * time.Hour)
	return service.EventInput{
		SchoolID:     1,
		ClassID:      &classID,
		Title:        "Museum trip",
		StartAt:      start,
		EndAt:        start.Add(2 * time.Hour),
		Visibility:   model.VisibilityClass,
		RequiresForm: true,
	}
}

// validPDF is a minimal payload that passes the blob checks.
var validPDF = []byte("%PDF-1.4\nfixture")

func methodPtr(m model.PaymentMethod) *model.PaymentMethod { return &m }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

type fixture struct {
	db *fakeDB

	events      *service.EventService
	obligations *service.ObligationService
	slots       *service.SlotService
	roster      *service.RosterService
	projections *service.ProjectionService
}

func newFixture() *fixture {
	db := newFakeDB()
	logger := zap.NewNop()

	eventStore := &fakeEventStore{db: db}
	obligationStore := &fakeObligationStore{db: db}
	slotStore := &fakeSlotStore{db: db}
	rosterStore := &fakeRosterStore{db: db}
	inboxStore := &fakeInboxStore{db: db}

	fanout := service.NewFanoutEngine(eventStore, obligationStore, rosterStore, logger)

	return &fixture{
		db:          db,
		events:      service.NewEventService(eventStore, obligationStore, rosterStore, fanout, logger),
		obligations: service.NewObligationService(eventStore, obligationStore, rosterStore, logger),
		slots:       service.NewSlotService(slotStore, rosterStore, logger),
		roster:      service.NewRosterService(rosterStore, obligationStore, fanout, logger),
		projections: service.NewProjectionService(eventStore, obligationStore, slotStore, rosterStore, inboxStore, logger),
	}
}
