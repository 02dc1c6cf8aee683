package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Identity and registry stubs
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
	err   error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func (r *stubUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return domain.ErrUserExists
		}
	}
	clone := *u
	r.users[u.ID] = &clone
	return nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *stubUserRepo) UpdateProfile(_ context.Context, id string, in ports.UserProfileInput, at time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.Name, u.Description, u.ProfilePhoto, u.UpdatedAt = in.Name, in.Description, in.ProfilePhoto, at
	clone := *u
	return &clone, nil
}

func (r *stubUserRepo) FindByIDs(_ context.Context, ids []string) (map[string]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[string]*domain.User)
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			clone := *u
			out[id] = &clone
		}
	}
	return out, nil
}

type stubSpecialistRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.Specialist
	listErr error
}

func newStubSpecialistRepo() *stubSpecialistRepo {
	return &stubSpecialistRepo{byID: make(map[string]*domain.Specialist)}
}

func (r *stubSpecialistRepo) add(sp *domain.Specialist) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[sp.ID] = sp
}

func (r *stubSpecialistRepo) Create(_ context.Context, sp *domain.Specialist) error {
	r.add(sp)
	return nil
}

func (r *stubSpecialistRepo) Update(_ context.Context, sp *domain.Specialist) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[sp.ID]; !ok {
		return domain.ErrSpecialistNotFound
	}
	r.byID[sp.ID] = sp
	return nil
}

func (r *stubSpecialistRepo) FindByID(_ context.Context, id string) (*domain.Specialist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sp, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrSpecialistNotFound
	}
	return sp, nil
}

func (r *stubSpecialistRepo) FindByUserID(_ context.Context, userID string) (*domain.Specialist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sp := range r.byID {
		if sp.UserID == userID {
			return sp, nil
		}
	}
	return nil, domain.ErrSpecialistNotFound
}

func (r *stubSpecialistRepo) List(_ context.Context, f ports.SpecialistFilter) ([]*domain.Specialist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var allowed map[string]bool
	if f.IDs != nil {
		allowed = make(map[string]bool, len(f.IDs))
		for _, id := range f.IDs {
			allowed[id] = true
		}
	}
	var out []*domain.Specialist
	for _, sp := range r.byID {
		if allowed != nil && !allowed[sp.ID] {
			continue
		}
		if f.OnlyAvailable && !sp.IsAvailable {
			continue
		}
		if f.Specialization != "" && sp.Specialization != f.Specialization {
			continue
		}
		if sp.Experience < f.MinExperience {
			continue
		}
		if f.MaxPrice > 0 && sp.PricePerHour > f.MaxPrice {
			continue
		}
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type stubCertRepo struct {
	mu    sync.Mutex
	byID  map[string]*domain.Certification
	order []string
}

func newStubCertRepo() *stubCertRepo {
	return &stubCertRepo{byID: make(map[string]*domain.Certification)}
}

func (r *stubCertRepo) Create(_ context.Context, c *domain.Certification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = c
	r.order = append(r.order, c.ID)
	return nil
}

func (r *stubCertRepo) FindByID(_ context.Context, id string) (*domain.Certification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrCertificationNotFound
	}
	clone := *c
	return &clone, nil
}

func (r *stubCertRepo) ListBySpecialist(_ context.Context, specialistID string) ([]*domain.Certification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Certification
	for _, id := range r.order {
		if c := r.byID[id]; c.SpecialistID == specialistID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *stubCertRepo) ListByStatus(_ context.Context, status domain.CertificationStatus) ([]*domain.Certification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Certification
	for _, id := range r.order {
		if c := r.byID[id]; c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *stubCertRepo) VerifiedSpecialistIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, c := range r.byID {
		if c.Status == domain.CertificationVerified && !seen[c.SpecialistID] {
			seen[c.SpecialistID] = true
			out = append(out, c.SpecialistID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *stubCertRepo) Review(_ context.Context, id string, status domain.CertificationStatus, reviewerID string, at time.Time) (*domain.Certification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrCertificationNotFound
	}
	if c.Status != domain.CertificationPending {
		return nil, domain.ErrCertificationFinal
	}
	c.Status = status
	c.VerifiedBy = reviewerID
	c.VerifiedAt = &at
	clone := *c
	return &clone, nil
}

type stubReviewRepo struct {
	mu      sync.Mutex
	reviews []*domain.Review
	err     error
}

func (r *stubReviewRepo) Create(_ context.Context, rv *domain.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reviews {
		if existing.UserID == rv.UserID && existing.SpecialistID == rv.SpecialistID {
			return domain.ErrReviewExists
		}
	}
	r.reviews = append(r.reviews, rv)
	return nil
}

func (r *stubReviewRepo) ListBySpecialist(_ context.Context, specialistID string) ([]*domain.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Review
	for _, rv := range r.reviews {
		if rv.SpecialistID == specialistID {
			out = append(out, rv)
		}
	}
	return out, nil
}

func (r *stubReviewRepo) StatsBySpecialist(_ context.Context, ids []string) (map[string]domain.ReviewStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	sums := make(map[string]int)
	out := make(map[string]domain.ReviewStats)
	for _, rv := range r.reviews {
		if !wanted[rv.SpecialistID] {
			continue
		}
		st := out[rv.SpecialistID]
		st.SpecialistID = rv.SpecialistID
		st.Count++
		sums[rv.SpecialistID] += rv.Rating
		st.AvgRating = float64(sums[rv.SpecialistID]) / float64(st.Count)
		out[rv.SpecialistID] = st
	}
	return out, nil
}

type stubMatchCache struct {
	matches     []ports.Match
	has         bool
	gen         int64
	getErr      error
	setErr      error
	sets        int
	invalidated int
	// afterGeneration runs once the generation has been handed out.
	afterGeneration func()
}

func (c *stubMatchCache) Get(context.Context) ([]ports.Match, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	return c.matches, c.has, nil
}

func (c *stubMatchCache) Generation(context.Context) (int64, error) {
	gen := c.gen
	if c.afterGeneration != nil {
		c.afterGeneration()
	}
	return gen, nil
}

func (c *stubMatchCache) Set(_ context.Context, gen int64, m []ports.Match, _ time.Duration) (bool, error) {
	c.sets++
	if c.setErr != nil {
		return false, c.setErr
	}
	if gen != c.gen {
		return false, nil
	}
	c.matches, c.has = m, true
	return true, nil
}

func (c *stubMatchCache) Invalidate(context.Context) error {
	c.invalidated++
	c.gen++
	c.matches, c.has = nil, false
	return nil
}

// ---------------------------------------------------------------------------
// Chat stubs
// ---------------------------------------------------------------------------

// stubChatRepo mimics the store guarantees: one ACTIVE session per
// (post, specialist) and all-or-nothing multi-document writes.
type stubChatRepo struct {
	mu        sync.Mutex
	sessions  map[string]*domain.ChatSession
	messages  []*domain.Message
	responses []*domain.ExperiencePostResponse

	// failWrite makes the next transactional write fail after validation.
	failWrite error
	// failAppend makes AppendMessage fail while set.
	failAppend error
	// skipPrecheck hides existing sessions from FindActiveByPostAndSpecialist
	// once, simulating a concurrent writer that passed the pre-check.
	skipPrecheck bool
}

func newStubChatRepo() *stubChatRepo {
	return &stubChatRepo{sessions: make(map[string]*domain.ChatSession)}
}

func (r *stubChatRepo) activeFor(postID, specialistID string) *domain.ChatSession {
	for _, s := range r.sessions {
		if s.Status == domain.SessionActive && s.ExperiencePostID != nil && *s.ExperiencePostID == postID &&
			s.SpecialistID != nil && *s.SpecialistID == specialistID {
			return s
		}
	}
	return nil
}

func (r *stubChatRepo) insertLocked(s *domain.ChatSession) error {
	if s.ExperiencePostID != nil && s.SpecialistID != nil && r.activeFor(*s.ExperiencePostID, *s.SpecialistID) != nil {
		return domain.ErrSessionExists
	}
	clone := *s
	r.sessions[s.ID] = &clone
	return nil
}

func (r *stubChatRepo) CreateSession(_ context.Context, s *domain.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(s)
}

func (r *stubChatRepo) CreateSessionWithMessage(_ context.Context, s *domain.ChatSession, first *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrite != nil {
		return r.failWrite
	}
	if err := r.insertLocked(s); err != nil {
		return err
	}
	r.messages = append(r.messages, first)
	return nil
}

func (r *stubChatRepo) CreateReply(_ context.Context, resp *domain.ExperiencePostResponse, s *domain.ChatSession, first *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ExperiencePostID != nil && s.SpecialistID != nil && r.activeFor(*s.ExperiencePostID, *s.SpecialistID) != nil {
		return domain.ErrSessionExists
	}
	if r.failWrite != nil {
		return r.failWrite
	}
	_ = r.insertLocked(s)
	r.responses = append(r.responses, resp)
	r.messages = append(r.messages, first)
	return nil
}

func (r *stubChatRepo) FindSession(_ context.Context, id string) (*domain.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *stubChatRepo) FindActiveByPostAndSpecialist(_ context.Context, postID, specialistID string) (*domain.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.skipPrecheck {
		r.skipPrecheck = false
		return nil, domain.ErrSessionNotFound
	}
	s := r.activeFor(postID, specialistID)
	if s == nil {
		return nil, domain.ErrSessionNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *stubChatRepo) list(match func(*domain.ChatSession) bool) []*domain.ChatSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ChatSession
	for _, s := range r.sessions {
		if match(s) {
			clone := *s
			out = append(out, &clone)
		}
	}
	return out
}

func (r *stubChatRepo) ListSessionsByUser(_ context.Context, userID string) ([]*domain.ChatSession, error) {
	return r.list(func(s *domain.ChatSession) bool { return s.UserID == userID }), nil
}

func (r *stubChatRepo) ListSessionsBySpecialist(_ context.Context, specialistID string) ([]*domain.ChatSession, error) {
	return r.list(func(s *domain.ChatSession) bool {
		return s.SpecialistID != nil && *s.SpecialistID == specialistID
	}), nil
}

func (r *stubChatRepo) CountActiveBySpecialist(_ context.Context, ids []string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int)
	for _, s := range r.sessions {
		if s.Status == domain.SessionActive && s.SpecialistID != nil {
			out[*s.SpecialistID]++
		}
	}
	return out, nil
}

func (r *stubChatRepo) CloseSession(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if s.Status != domain.SessionActive {
		return domain.ErrSessionClosed
	}
	s.Status = domain.SessionClosed
	s.ClosedAt = &at
	s.UpdatedAt = at
	return nil
}

func (r *stubChatRepo) AppendMessage(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAppend != nil {
		return r.failAppend
	}
	s, ok := r.sessions[m.SessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if s.Status != domain.SessionActive {
		return domain.ErrSessionClosed
	}
	s.MessageSeq++
	s.UpdatedAt = m.CreatedAt
	m.Seq = s.MessageSeq
	clone := *m
	r.messages = append(r.messages, &clone)
	return nil
}

func (r *stubChatRepo) ListMessages(_ context.Context, sessionID string) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for _, m := range r.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (r *stubChatRepo) FindMessage(_ context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, domain.ErrMessageNotFound
}

func (r *stubChatRepo) counts() (sessions, messages, responses int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions), len(r.messages), len(r.responses)
}

type stubExperienceRepo struct {
	mu        sync.Mutex
	posts     map[string]*domain.ExperiencePost
	responses []*domain.ExperiencePostResponse
}

func newStubExperienceRepo() *stubExperienceRepo {
	return &stubExperienceRepo{posts: make(map[string]*domain.ExperiencePost)}
}

func (r *stubExperienceRepo) CreatePost(_ context.Context, p *domain.ExperiencePost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[p.ID] = p
	return nil
}

func (r *stubExperienceRepo) FindPost(_ context.Context, id string) (*domain.ExperiencePost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	return p, nil
}

func (r *stubExperienceRepo) ListPublished(_ context.Context) ([]*domain.ExperiencePost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ExperiencePost
	for _, p := range r.posts {
		if p.Published {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *stubExperienceRepo) CreateResponse(_ context.Context, resp *domain.ExperiencePostResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, resp)
	return nil
}

func (r *stubExperienceRepo) ListResponses(_ context.Context, postID string) ([]*domain.ExperiencePostResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ExperiencePostResponse
	for _, resp := range r.responses {
		if resp.ExperiencePostID == postID {
			out = append(out, resp)
		}
	}
	return out, nil
}

type stubNotifier struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (n *stubNotifier) Publish(_ context.Context, sessionID string, _ int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.published = append(n.published, sessionID)
	return nil
}

type stubIdempotency struct {
	mu         sync.Mutex
	keys       map[string]string
	reserveErr error
	released   []string
}

func newStubIdempotency() *stubIdempotency {
	return &stubIdempotency{keys: make(map[string]string)}
}

func (s *stubIdempotency) Reserve(_ context.Context, scope, key, id string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserveErr != nil {
		return "", false, s.reserveErr
	}
	k := scope + "|" + key
	if holder, ok := s.keys[k]; ok {
		return holder, false, nil
	}
	s.keys[k] = id
	return id, true, nil
}

func (s *stubIdempotency) Release(_ context.Context, scope, key, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scope + "|" + key
	if s.keys[k] == id {
		delete(s.keys, k)
		s.released = append(s.released, id)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Fixture helpers
// ---------------------------------------------------------------------------

type fixture struct {
	users       *stubUserRepo
	specialists *stubSpecialistRepo
	certs       *stubCertRepo
	reviews     *stubReviewRepo
	chats       *stubChatRepo
	posts       *stubExperienceRepo
}

func newFixture() *fixture {
	return &fixture{
		users:       newStubUserRepo(),
		specialists: newStubSpecialistRepo(),
		certs:       newStubCertRepo(),
		reviews:     &stubReviewRepo{},
		chats:       newStubChatRepo(),
		posts:       newStubExperienceRepo(),
	}
}

// addSpecialist registers a user with a specialist profile and, when
// verified, a VERIFIED certification.
func (f *fixture) addSpecialist(id, userID string, experience int, available, verified bool) *domain.Specialist {
	_ = f.users.Create(context.Background(), &domain.User{ID: userID, Email: userID + "@example.com", Name: "Dr " + userID, Role: domain.RoleSpecialist})
	sp := &domain.Specialist{ID: id, UserID: userID, Experience: experience, IsAvailable: available}
	f.specialists.add(sp)
	status := domain.CertificationPending
	if verified {
		status = domain.CertificationVerified
	}
	_ = f.certs.Create(context.Background(), &domain.Certification{ID: "cert-" + id, SpecialistID: id, Status: status})
	return sp
}

func (f *fixture) addPost(id, authorID string, published bool) *domain.ExperiencePost {
	p := &domain.ExperiencePost{ID: id, UserID: authorID, Title: "t", Content: "c", Published: published, CreatedAt: time.Now().UTC()}
	_ = f.posts.CreatePost(context.Background(), p)
	return p
}

func (f *fixture) addReview(specialistID, userID string, rating int) {
	_ = f.reviews.Create(context.Background(), &domain.Review{ID: specialistID + userID, SpecialistID: specialistID, UserID: userID, Rating: rating})
}

func strPtr(s string) *string { return &s }
