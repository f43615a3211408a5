package controllers

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/mayurvchitte/lms-ci-cd/models"
	"github.com/mayurvchitte/lms-ci-cd/otp"
)

var (
	// Shaped so utils.IsDuplicateKey's fallback recognizes it.
	errDuplicateKey = errors.New("E11000 duplicate key error collection: lms.users")
	errNoDocuments  = mongo.ErrNoDocuments
	errMailDown     = errors.New("smtp unreachable")
)

// In-memory stand-ins for the mongo-backed stores, mirroring their
// single-record update semantics.

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User // keyed by email
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]*models.User{}}
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeUsers) FindByID(_ context.Context, id bson.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) EmailTaken(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[email]
	return ok, nil
}

func (f *fakeUsers) Insert(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.Email]; ok {
		return errDuplicateKey
	}
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	cp := *u
	f.users[u.Email] = &cp
	return nil
}

func (f *fakeUsers) RecordLogin(_ context.Context, id bson.ObjectID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			if u.IsActive == nil {
				active := true
				u.IsActive = &active
			}
			t := at
			u.LastLoginAt = &t
			u.UpdatedAt = at
		}
	}
	return nil
}

func (f *fakeUsers) SaveResetTicket(_ context.Context, email string, t otp.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return errNoDocuments
	}
	u.ResetOtpCode = t.Code
	u.ResetOtpExpiresAt = t.ExpiresAt
	u.ResetOtpVerified = t.Verified
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, email string, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return errNoDocuments
	}
	u.PasswordHash = hash
	u.ResetOtpCode = ""
	u.ResetOtpExpiresAt = time.Time{}
	u.ResetOtpVerified = false
	return nil
}

func (f *fakeUsers) SetActive(_ context.Context, id bson.ObjectID, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			a := active
			u.IsActive = &a
		}
	}
	return nil
}

func (f *fakeUsers) Enroll(_ context.Context, id bson.ObjectID, courseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			for _, c := range u.EnrolledCourses {
				if c == courseID {
					return nil
				}
			}
			u.EnrolledCourses = append(u.EnrolledCourses, courseID)
		}
	}
	return nil
}

func (f *fakeUsers) WishlistAdd(_ context.Context, id bson.ObjectID, courseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			for _, c := range u.Wishlist {
				if c == courseID {
					return nil
				}
			}
			u.Wishlist = append(u.Wishlist, courseID)
		}
	}
	return nil
}

func (f *fakeUsers) WishlistRemove(_ context.Context, id bson.ObjectID, courseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			out := u.Wishlist[:0]
			for _, c := range u.Wishlist {
				if c != courseID {
					out = append(out, c)
				}
			}
			u.Wishlist = out
		}
	}
	return nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id bson.ObjectID, name, photoURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			if name != "" {
				u.Name = name
			}
			if photoURL != "" {
				u.PhotoURL = photoURL
			}
		}
	}
	return nil
}

func (f *fakeUsers) List(_ context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

type fakePayments struct {
	mu     sync.Mutex
	orders map[string]*models.Payment // keyed by gateway order id
}

func newFakePayments() *fakePayments {
	return &fakePayments{orders: map[string]*models.Payment{}}
}

func (f *fakePayments) FindPaid(_ context.Context, userID, courseID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.orders {
		if p.UserID == userID && p.CourseID == courseID && p.Status == models.PaymentPaid {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePayments) FindByOrderID(_ context.Context, gatewayOrderID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.orders[gatewayOrderID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f *fakePayments) Insert(_ context.Context, p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = bson.NewObjectID()
	}
	cp := *p
	f.orders[p.GatewayOrderID] = &cp
	return nil
}

func (f *fakePayments) MarkPaid(_ context.Context, gatewayOrderID, gatewayPaymentID, signature string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.orders[gatewayOrderID]
	if !ok || p.Status != models.PaymentCreated {
		return nil
	}
	p.Status = models.PaymentPaid
	p.GatewayPaymentID = gatewayPaymentID
	p.Signature = signature
	t := at
	p.PaidAt = &t
	return nil
}

type fakeCourses struct {
	courses map[string]*models.Course
}

func (f *fakeCourses) FindByID(_ context.Context, id string) (*models.Course, error) {
	if c, ok := f.courses[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

type stubMailer struct {
	mu   sync.Mutex
	sent []string // bodies in send order
	fail bool
}

func (m *stubMailer) Send(_, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errMailDown
	}
	m.sent = append(m.sent, body)
	return nil
}

func (m *stubMailer) lastBody() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1]
}
