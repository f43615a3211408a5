package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mayurvchitte/lms-ci-cd/gateway"
	"github.com/mayurvchitte/lms-ci-cd/models"
)

const gatewaySecret = "test-key-secret"

func signCallback(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(gatewaySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// fakeGatewayServer answers order creation the way the real gateway
// does, handing out sequential order ids.
func fakeGatewayServer(t *testing.T) *httptest.Server {
	t.Helper()
	n := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/orders", r.URL.Path)
		var req struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		n++
		json.NewEncoder(w).Encode(gateway.Order{
			ID:       "order_" + string(rune('A'+n-1)),
			Amount:   req.Amount,
			Currency: req.Currency,
			Status:   "created",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func paymentRouter(userID string, payments *fakePayments, users *fakeUsers, courses *fakeCourses, gw *gateway.Client) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userID", userID) })
	r.POST("/payment/order", CreateOrder(payments, courses, gw))
	r.POST("/payment/verify", VerifyPayment(payments, users, gw))
	return r
}

func TestPaymentFlow(t *testing.T) {
	srv := fakeGatewayServer(t)
	gw := gateway.New(srv.URL, "test-key-id", gatewaySecret, 5*time.Second)

	user := &models.User{Email: "buyer@ex.com", Name: "Buyer", Role: models.RoleStudent}
	users := newFakeUsers()
	require.NoError(t, users.Insert(t.Context(), user))

	courseID := bson.NewObjectID().Hex()
	courses := &fakeCourses{courses: map[string]*models.Course{
		courseID: {Title: "Go from scratch", Price: 499},
	}}
	payments := newFakePayments()
	r := paymentRouter(user.ID.Hex(), payments, users, courses, gw)

	w := postJSON(t, r, "/payment/order", gin.H{"courseId": courseID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var created struct {
		Order gateway.Order `json:"order"`
		Key   string        `json:"key"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "test-key-id", created.Key)
	assert.Equal(t, int64(49900), created.Order.Amount, "price is converted to minor units")

	rec, err := payments.FindByOrderID(t.Context(), created.Order.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.PaymentCreated, rec.Status)

	// A tampered signature is rejected before anything is touched.
	w = postJSON(t, r, "/payment/verify", gin.H{
		"gatewayOrderId":   created.Order.ID,
		"gatewayPaymentId": "pay_1",
		"signature":        signCallback(created.Order.ID, "pay_other"),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid signature")

	rec, err = payments.FindByOrderID(t.Context(), created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCreated, rec.Status)
	u, err := users.FindByEmail(t.Context(), "buyer@ex.com")
	require.NoError(t, err)
	assert.Empty(t, u.EnrolledCourses)

	// The genuine callback marks the order paid and enrolls the buyer.
	w = postJSON(t, r, "/payment/verify", gin.H{
		"gatewayOrderId":   created.Order.ID,
		"gatewayPaymentId": "pay_1",
		"signature":        signCallback(created.Order.ID, "pay_1"),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"success":true`)

	rec, err = payments.FindByOrderID(t.Context(), created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, rec.Status)
	assert.Equal(t, "pay_1", rec.GatewayPaymentID)
	require.NotNil(t, rec.PaidAt)

	u, err = users.FindByEmail(t.Context(), "buyer@ex.com")
	require.NoError(t, err)
	assert.Equal(t, []string{courseID}, u.EnrolledCourses)

	// A replayed callback stays idempotent.
	w = postJSON(t, r, "/payment/verify", gin.H{
		"gatewayOrderId":   created.Order.ID,
		"gatewayPaymentId": "pay_1",
		"signature":        signCallback(created.Order.ID, "pay_1"),
	})
	require.Equal(t, http.StatusOK, w.Code)
	u, err = users.FindByEmail(t.Context(), "buyer@ex.com")
	require.NoError(t, err)
	assert.Equal(t, []string{courseID}, u.EnrolledCourses, "replay must not duplicate the enrollment")

	// Once paid, a second order for the same course is refused.
	w = postJSON(t, r, "/payment/order", gin.H{"courseId": courseID})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already enrolled")
}

func TestCreateOrderUnknownCourse(t *testing.T) {
	srv := fakeGatewayServer(t)
	gw := gateway.New(srv.URL, "test-key-id", gatewaySecret, 5*time.Second)

	r := paymentRouter(bson.NewObjectID().Hex(), newFakePayments(), newFakeUsers(),
		&fakeCourses{courses: map[string]*models.Course{}}, gw)

	w := postJSON(t, r, "/payment/order", gin.H{"courseId": bson.NewObjectID().Hex()})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateOrderGatewayDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"description":"auth failed"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()
	gw := gateway.New(srv.URL, "bad-key", "bad-secret", 5*time.Second)

	courseID := bson.NewObjectID().Hex()
	courses := &fakeCourses{courses: map[string]*models.Course{
		courseID: {Title: "Go from scratch", Price: 499},
	}}
	payments := newFakePayments()
	r := paymentRouter(bson.NewObjectID().Hex(), payments, newFakeUsers(), courses, gw)

	w := postJSON(t, r, "/payment/order", gin.H{"courseId": courseID})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestVerifyPaymentUnknownOrder(t *testing.T) {
	gw := gateway.New("http://unused", "test-key-id", gatewaySecret, time.Second)
	r := paymentRouter(bson.NewObjectID().Hex(), newFakePayments(), newFakeUsers(), &fakeCourses{}, gw)

	w := postJSON(t, r, "/payment/verify", gin.H{
		"gatewayOrderId":   "order_missing",
		"gatewayPaymentId": "pay_1",
		"signature":        signCallback("order_missing", "pay_1"),
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
