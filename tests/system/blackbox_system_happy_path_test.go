//go:build system

package system_test

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("System blackbox happy path", Ordered, func() {
	var repoRoot string
	var cfg systemTestConfig
	var api *apiClient
	var candidateID string

	BeforeAll(func() {
		if os.Getenv("RUN_BLACKBOX_SYSTEM_TEST") != "1" {
			Skip("set RUN_BLACKBOX_SYSTEM_TEST=1 to run real blackbox system test")
		}

		cfg = loadSystemTestConfig()

		var err error
		repoRoot, err = findRepoRoot()
		Expect(err).ToNot(HaveOccurred())

		By("verifying required docker compose services are already running")
		Expect(requireComposeServicesRunning(repoRoot, cfg.RequiredComposeServices)).To(Succeed())

		By("failing fast if infrastructure is unreachable")
		Expect(waitForPostgres(cfg.PostgresDSN, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+cfg.APIHealthPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+cfg.APIReadyPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(applyMigration(repoRoot, cfg.PostgresDSN)).To(Succeed())

		api, err = newAPIClient(cfg.APIBaseURL, cfg.RequestTimeout)
		Expect(err).ToNot(HaveOccurred())
		Expect(api.bootstrap()).To(Succeed())

		candidateID = fmt.Sprintf("system-test-%d", time.Now().UnixNano())
	})

	It("drives a candidate from conditional offer to a revocation decision over real HTTP", func() {
		base := "/v1/candidates/" + candidateID

		By("starting at step 1 with no decision")
		status, body, err := api.getJSON(base + "/progress")
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(200))
		Expect(body["currentStep"]).To(BeEquivalentTo(1))
		Expect(body["completed"]).To(BeFalse())
		Expect(body).ToNot(HaveKey("decision"))

		By("saving a partial offer form draft")
		status, body, err = api.patchJSON(base+"/forms/offer/", map[string]any{
			"date": "2025-02-01", "applicantName": "Jane Doe",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(200))
		Expect(body["success"]).To(BeTrue())

		By("rejecting an incomplete step submission with the missing field names")
		status, body, err = api.postJSON(base+"/assessment", map[string]any{
			"step": 1, "hrAdminName": "Pat HR", "companyName": "Acme",
			"form": map[string]any{},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(400))
		Expect(body["missing"]).To(ContainElements("position", "employerName"))

		By("sending the conditional offer")
		status, body, err = api.postJSON(base+"/assessment", map[string]any{
			"step": 1, "hrAdminName": "Pat HR", "companyName": "Acme",
			"form": map[string]any{
				"date": "2025-02-01", "applicantName": "Jane Doe",
				"position": "Clerk", "employerName": "Acme",
			},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(200))
		Expect(body["currentStep"]).To(BeEquivalentTo(2))

		By("growing the duties list before completing the assessment")
		status, body, err = api.postJSON(base+"/forms/assessment/list/duties", nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(200))

		By("sending the individualized assessment")
		status, body, err = api.postJSON(base+"/assessment", map[string]any{
			"step": 2, "hrAdminName": "Pat HR", "companyName": "Acme",
			"form": map[string]any{
				"employer": "Acme", "applicant": "Jane Doe", "position": "Clerk",
				"offerDate": "2025-02-01", "assessmentDate": "2025-02-10",
				"reportDate": "2025-02-08", "performedBy": "Pat HR",
				"duties": []string{"register operation", "cash handling"},
				"conduct": "petty theft", "howLongAgo": "6 years",
				"activities": []string{"night classes"},
				"rescindReason": "cash handling risk",
			},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(200))
		Expect(body["currentStep"]).To(BeEquivalentTo(3))

		By("computing the legal response deadline")
		status, body, err = api.getJSON("/v1/business-days/deadline?start=2025-02-15&days=5")
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(200))
		Expect(body["deadline"]).ToNot(BeEmpty())

		By("sending the preliminary revocation notice")
		status, body, err = api.postJSON(base+"/assessment", map[string]any{
			"step": 3, "hrAdminName": "Pat HR", "companyName": "Acme",
			"form": map[string]any{
				"date": "2025-02-15", "applicant": "Jane Doe", "position": "Clerk",
				"convictions": []string{"petty theft (2019)"}, "numBusinessDays": 5,
				"contactName": "Pat HR", "companyName": "Acme",
				"address": "1 Main St", "phone": "555-0100",
				"seriousReason": "cash handling", "timeSinceConduct": "6 years",
				"timeSinceSentence": "5 years", "jobDuties": "register operation",
				"fitnessReason": "directly related to duties",
			},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(200))
		Expect(body["currentStep"]).To(BeEquivalentTo(4))

		By("concluding the case as revoked after the response window lapsed")
		status, body, err = api.postJSON(base+"/actions/conclude-revocation", map[string]any{
			"hrAdminName": "Pat HR", "companyName": "Acme",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(200))
		decision, ok := body["decision"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(decision["decision"]).To(Equal("revoke"))

		By("reporting the workflow as completed afterwards")
		status, body, err = api.getJSON(base + "/progress")
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(200))
		Expect(body["completed"]).To(BeTrue())

		By("rejecting any further decision")
		status, _, err = api.postJSON(base+"/actions/extend-offer", map[string]any{
			"hrAdminName": "Pat HR",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(409))

		By("verifying durable records in Postgres")
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()
		Expect(db.Ping()).To(Succeed())

		decisions, err := fetchStringRows(db, `SELECT decision FROM workflow_progress WHERE candidate_id = $1`, candidateID)
		Expect(err).ToNot(HaveOccurred())
		Expect(decisions).To(Equal([]string{"revoke"}))

		formKinds, err := fetchStringRows(db, `SELECT form_kind FROM candidate_forms WHERE candidate_id = $1 ORDER BY form_kind`, candidateID)
		Expect(err).ToNot(HaveOccurred())
		Expect(formKinds).To(ContainElements("offer", "assessment", "revocation"))

		actions, err := fetchStringRows(db, `SELECT action FROM audit_log WHERE candidate_id = $1 ORDER BY id`, candidateID)
		Expect(err).ToNot(HaveOccurred())
		Expect(actions).To(ContainElement("step_submitted"))
		Expect(actions).To(ContainElement("decision_recorded"))
	})

	It("rejects writes that lack the csrf header", func() {
		bare, err := newAPIClient(cfg.APIBaseURL, cfg.RequestTimeout)
		Expect(err).ToNot(HaveOccurred())

		status, _, err := bare.postJSON("/v1/candidates/"+candidateID+"/assessment", map[string]any{"step": 1})
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(403))
	})
})
