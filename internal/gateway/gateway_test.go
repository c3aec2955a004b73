package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"marketplace_backend/internal/config"
	"marketplace_backend/internal/util"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/ghttp"
)

func collaborators(url string) config.CollaboratorsConfig {
	return config.CollaboratorsConfig{
		WalletURL:         url,
		CourseManagerURL:  url,
		BapURL:            url,
		CredentialURL:     url,
		PassbookURL:       url,
		UserServiceURL:    url,
		RequestServiceURL: url,
		Timeout:           2 * time.Second,
		RetryCount:        2,
	}
}

var _ = Describe("Wallet", func() {
	var (
		server *Server
		wallet *WalletClient
		ctx    context.Context
	)

	BeforeEach(func() {
		server = NewServer()
		wallet = NewWalletClient(collaborators(server.URL()))
		ctx = context.Background()
	})

	AfterEach(func() {
		server.Close()
	})

	It("Reads the credit balance from the data envelope", func() {
		server.AppendHandlers(CombineHandlers(
			VerifyRequest(http.MethodGet, "/api/consumers/c-1/credits"),
			RespondWithJSONEncoded(http.StatusOK, map[string]interface{}{
				"data": map[string]int{"credits": 120},
			}),
		))

		credits, err := wallet.Credits(ctx, "c-1")
		Expect(err).ToNot(HaveOccurred())
		Expect(credits).To(Equal(120))
	})

	It("Sends the debit with its idempotency key", func() {
		server.AppendHandlers(CombineHandlers(
			VerifyRequest(http.MethodPost, "/api/consumers/c-1/purchase"),
			VerifyHeaderKV(util.HeaderIdempotencyKey, "key-1"),
			VerifyJSONRepresenting(WalletTransfer{
				ProviderID:  "p-1",
				Credits:     40,
				Description: "Purchased course Go",
			}),
			RespondWith(http.StatusOK, `{"data":{}}`),
		))

		err := wallet.Debit(ctx, "c-1", WalletTransfer{
			ProviderID:  "p-1",
			Credits:     40,
			Description: "Purchased course Go",
		}, "key-1")
		Expect(err).ToNot(HaveOccurred())
	})

	It("Retries a keyed debit on 5xx", func() {
		server.AppendHandlers(
			RespondWith(http.StatusServiceUnavailable, `{"message":"busy"}`),
			RespondWith(http.StatusOK, `{"data":{}}`),
		)

		err := wallet.Debit(ctx, "c-1", WalletTransfer{Credits: 1}, "key-2")
		Expect(err).ToNot(HaveOccurred())
		Expect(server.ReceivedRequests()).To(HaveLen(2))
		for _, r := range server.ReceivedRequests() {
			Expect(r.Header.Get(util.HeaderIdempotencyKey)).To(Equal("key-2"))
		}
	})

	It("Classifies 4xx as a definitive rejection carrying the upstream status", func() {
		server.AppendHandlers(
			RespondWith(http.StatusBadRequest, `{"message":"insufficient balance"}`),
		)

		err := wallet.Debit(ctx, "c-1", WalletTransfer{Credits: 1}, "key-3")
		Expect(err).To(HaveOccurred())

		var upstream *UpstreamError
		Expect(errors.As(err, &upstream)).To(BeTrue())
		Expect(upstream.Service).To(Equal(ServiceWallet))
		Expect(upstream.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(upstream.Message).To(Equal("insufficient balance"))
		Expect(upstream.Transient).To(BeFalse())
		Expect(util.KindOf(err)).To(Equal(util.KindUpstreamRejected))
		Expect(util.StatusOf(err)).To(Equal(http.StatusBadRequest))
		Expect(server.ReceivedRequests()).To(HaveLen(1))
	})
})

var _ = Describe("Retry policy", func() {
	var server *Server

	BeforeEach(func() {
		server = NewServer()
	})

	AfterEach(func() {
		server.Close()
	})

	It("Does not replay a POST without an idempotency key", func() {
		server.AppendHandlers(
			RespondWith(http.StatusBadGateway, `upstream down`),
		)
		bap := NewBAPClient(collaborators(server.URL()))

		err := bap.Rate(context.Background(), RatingRequest{CourseID: "1", Rating: 5})
		Expect(err).To(HaveOccurred())
		Expect(util.IsTransient(err)).To(BeTrue())
		Expect(util.StatusOf(err)).To(Equal(http.StatusServiceUnavailable))
		Expect(server.ReceivedRequests()).To(HaveLen(1))
	})

	It("Treats an unreachable collaborator as transient", func() {
		dead := NewServer()
		url := dead.URL()
		dead.Close()
		cfg := collaborators(url)
		cfg.RetryCount = 0
		user := NewUserClient(cfg)

		_, err := user.Profile(context.Background(), "c-1")
		Expect(err).To(HaveOccurred())

		var upstream *UpstreamError
		Expect(errors.As(err, &upstream)).To(BeTrue())
		Expect(upstream.StatusCode).To(BeZero())
		Expect(upstream.Transient).To(BeTrue())
	})
})

var _ = Describe("Course manager", func() {
	var (
		server  *Server
		manager *CourseManagerClient
	)

	BeforeEach(func() {
		server = NewServer()
		manager = NewCourseManagerClient(collaborators(server.URL()))
	})

	AfterEach(func() {
		server.Close()
	})

	It("Returns the course link of a local purchase", func() {
		server.AppendHandlers(CombineHandlers(
			VerifyRequest(http.MethodPost, "/api/course/42/purchase/c-1"),
			RespondWithJSONEncoded(http.StatusCreated, map[string]interface{}{
				"data": map[string]string{"courseLink": "https://learn.example.com/42"},
			}),
		))

		link, err := manager.Purchase(context.Background(), "42", "c-1", "key-1")
		Expect(err).ToNot(HaveOccurred())
		Expect(link).To(Equal("https://learn.example.com/42"))
	})

	It("Escapes the course id as a single path segment", func() {
		server.AppendHandlers(CombineHandlers(
			VerifyRequest(http.MethodPost, "/api/course/../../admin/wipe?/purchase/c-1"),
			func(w http.ResponseWriter, req *http.Request) {
				Expect(req.URL.EscapedPath()).To(Equal("/api/course/..%2F..%2Fadmin%2Fwipe%3F/purchase/c-1"))
				Expect(req.URL.RawQuery).To(BeEmpty())
			},
			RespondWith(http.StatusOK, `{"data":{"courseLink":""}}`),
		))

		_, err := manager.Purchase(context.Background(), "../../admin/wipe?", "c-1", "key-1")
		Expect(err).ToNot(HaveOccurred())
		Expect(server.ReceivedRequests()).To(HaveLen(1))
	})

	It("Patches the rating", func() {
		server.AppendHandlers(CombineHandlers(
			VerifyRequest(http.MethodPatch, "/api/course/42/feedback/c-1"),
			VerifyJSON(`{"rating":4}`),
			RespondWith(http.StatusOK, `{}`),
		))

		Expect(manager.SubmitFeedback(context.Background(), "42", "c-1", 4)).To(Succeed())
	})

	It("Forwards the search text as a query parameter", func() {
		server.AppendHandlers(CombineHandlers(
			VerifyRequest(http.MethodGet, "/api/course/search", "searchInput=golang"),
			RespondWith(http.StatusOK, `{"data":[{"courseId":"1"}]}`),
		))

		courses, err := manager.Search(context.Background(), "golang")
		Expect(err).ToNot(HaveOccurred())
		Expect(string(courses)).To(MatchJSON(`[{"courseId":"1"}]`))
	})
})

var _ = Describe("BAP", func() {
	var (
		server *Server
		bap    *BAPClient
	)

	BeforeEach(func() {
		server = NewServer()
		bap = NewBAPClient(collaborators(server.URL()))
	})

	AfterEach(func() {
		server.Close()
	})

	It("Confirms an external order with the applicant profile", func() {
		req := ConfirmRequest{
			ProviderID: "p-9",
			CourseID:   "ext-1",
			Amount:     30,
			BppID:      "other.bpp",
			BppURI:     "https://bpp.example.com",
			ApplicantProfile: ApplicantProfile{
				Name:  "Asha",
				Email: "asha@example.com",
				Phone: "+911234567890",
			},
		}
		server.AppendHandlers(CombineHandlers(
			VerifyRequest(http.MethodPost, "/courses/confirm"),
			VerifyHeaderKV(util.HeaderIdempotencyKey, "confirm-1"),
			VerifyJSONRepresenting(req),
			RespondWith(http.StatusOK, `{}`),
		))

		Expect(bap.Confirm(context.Background(), req, "confirm-1")).To(Succeed())
	})

	It("Reads the search message id", func() {
		server.AppendHandlers(CombineHandlers(
			VerifyRequest(http.MethodGet, "/courses/search", "searchText=go"),
			RespondWith(http.StatusOK, `{"messageId":"m-1"}`),
		))

		id, err := bap.Search(context.Background(), "go")
		Expect(err).ToNot(HaveOccurred())
		Expect(id).To(Equal("m-1"))
	})
})

var _ = Describe("Credential", func() {
	var server *Server

	BeforeEach(func() {
		server = NewServer()
	})

	AfterEach(func() {
		server.Close()
	})

	It("Extracts the credential id and keeps the raw response", func() {
		server.AppendHandlers(CombineHandlers(
			VerifyRequest(http.MethodPost, "/credentials/issue"),
			RespondWith(http.StatusOK, `{"credential":{"id":"did:cred:1"}}`),
		))
		cc := NewCredentialClient(collaborators(server.URL()))

		issued, err := cc.Issue(context.Background(), IssueRequest{Tags: []string{"courseCompletionCredential"}}, "k")
		Expect(err).ToNot(HaveOccurred())
		Expect(issued.ID).To(Equal("did:cred:1"))
		Expect(json.Valid(issued.Raw)).To(BeTrue())
	})

	It("Rejects a response without an id", func() {
		server.AppendHandlers(RespondWith(http.StatusOK, `{"credential":{}}`))
		cc := NewCredentialClient(collaborators(server.URL()))

		_, err := cc.Issue(context.Background(), IssueRequest{}, "k")
		Expect(err).To(HaveOccurred())
		Expect(util.KindOf(err)).To(Equal(util.KindUpstreamRejected))
	})
})

var _ = Describe("User service", func() {
	var (
		server *Server
		user   *UserClient
	)

	BeforeEach(func() {
		server = NewServer()
		user = NewUserClient(collaborators(server.URL()))
	})

	AfterEach(func() {
		server.Close()
	})

	It("Maps a missing profile to consumer not found", func() {
		server.AppendHandlers(RespondWith(http.StatusOK, `{"data":null}`))

		_, err := user.Profile(context.Background(), "c-404")
		Expect(err).To(MatchError(util.ErrConsumerNotFound))
	})

	It("Escapes the consumer id in the profile path", func() {
		server.AppendHandlers(CombineHandlers(
			func(w http.ResponseWriter, req *http.Request) {
				Expect(req.URL.EscapedPath()).To(Equal("/api/mockFracService/user/c-1%2F..%2Fadmin"))
			},
			RespondWith(http.StatusOK, `{"data":{"name":"Asha","userName":"asha","email":"asha@example.com"}}`),
		))

		_, err := user.Profile(context.Background(), "c-1/../admin")
		Expect(err).ToNot(HaveOccurred())
	})

	It("Builds the competency name to id map", func() {
		server.AppendHandlers(CombineHandlers(
			VerifyRequest(http.MethodGet, "/api/mockFracService/competency"),
			RespondWith(http.StatusOK, `{"data":[{"id":1,"name":"NestJs"},{"id":2,"name":"Micro Architecture"}]}`),
		))

		ids, err := user.CompetencyIDs(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(ids).To(Equal(map[string]int{"NestJs": 1, "Micro Architecture": 2}))
	})
})
