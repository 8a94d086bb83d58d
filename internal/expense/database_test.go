package expense

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveExpense", func() {
		var (
			expense *Expense
			err     error
		)

		BeforeEach(func() {
			expense = &Expense{
				ID:          "exp-1",
				Title:       "Client dinner",
				Comment:     "two attendees",
				Category:    "Meals",
				AmountCents: 4250,
				Date:        time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC),
				ImagePath:   "exp-1.jpg",
				CreatedAt:   time.Now(),
				UpdatedAt:   time.Now(),
			}
		})

		JustBeforeEach(func() {
			err = db.SaveExpense(expense)
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should round-trip every field", func() {
			saved, getErr := db.GetExpense("exp-1")
			Expect(getErr).NotTo(HaveOccurred())
			Expect(saved.Title).To(Equal("Client dinner"))
			Expect(saved.AmountCents).To(Equal(int64(4250)))
			Expect(saved.Date.Equal(expense.Date)).To(BeTrue())
			Expect(saved.ImagePath).To(Equal("exp-1.jpg"))
		})

		It("should overwrite on a second save", func() {
			expense.Title = "Team dinner"
			Expect(db.SaveExpense(expense)).To(Succeed())

			saved, getErr := db.GetExpense("exp-1")
			Expect(getErr).NotTo(HaveOccurred())
			Expect(saved.Title).To(Equal("Team dinner"))
		})
	})

	Describe("GetExpense", func() {
		When("the expense does not exist", func() {
			It("should return an error", func() {
				_, err := db.GetExpense("nonexistent")
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("ListExpenses", func() {
		When("the database is empty", func() {
			It("should return an empty slice", func() {
				expenses, err := db.ListExpenses()
				Expect(err).NotTo(HaveOccurred())
				Expect(expenses).To(BeEmpty())
			})
		})

		When("expenses exist", func() {
			BeforeEach(func() {
				Expect(db.SaveExpense(&Expense{ID: "exp-1", Title: "Taxi"})).To(Succeed())
				Expect(db.SaveExpense(&Expense{ID: "exp-2", Title: "Lunch"})).To(Succeed())
			})

			It("should return all of them", func() {
				expenses, err := db.ListExpenses()
				Expect(err).NotTo(HaveOccurred())
				Expect(expenses).To(HaveLen(2))
			})
		})
	})

	Describe("DeleteExpense", func() {
		BeforeEach(func() {
			Expect(db.SaveExpense(&Expense{ID: "exp-1", Title: "Taxi"})).To(Succeed())
		})

		It("should remove the expense", func() {
			Expect(db.DeleteExpense("exp-1")).To(Succeed())
			_, err := db.GetExpense("exp-1")
			Expect(err).To(HaveOccurred())
		})

		It("should tolerate a missing expense", func() {
			Expect(db.DeleteExpense("nonexistent")).To(Succeed())
		})
	})

	Describe("SaveReport", func() {
		var report *Report

		BeforeEach(func() {
			report = &Report{
				ID:         "rpt-1",
				Name:       "20250601_120000",
				ExpenseIDs: []string{"exp-1", "exp-2"},
				Status:     StatusUnderReview,
				UserID:     "auth0|u1",
				UserName:   "Ada Lovelace",
				Comment:    "",
				CreatedAt:  time.Now(),
				UpdatedAt:  time.Now(),
			}
		})

		It("should round-trip the report", func() {
			Expect(db.SaveReport(report)).To(Succeed())

			saved, err := db.GetReport("rpt-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Name).To(Equal("20250601_120000"))
			Expect(saved.ExpenseIDs).To(Equal([]string{"exp-1", "exp-2"}))
			Expect(saved.Status).To(Equal(StatusUnderReview))
			Expect(saved.UserName).To(Equal("Ada Lovelace"))
		})
	})

	Describe("ListReports", func() {
		BeforeEach(func() {
			Expect(db.SaveReport(&Report{ID: "rpt-1", Name: DraftReportName, Status: StatusUnsubmitted})).To(Succeed())
			Expect(db.SaveReport(&Report{ID: "rpt-2", Name: "20250601_120000", Status: StatusApproved})).To(Succeed())
		})

		It("should return all reports", func() {
			reports, err := db.ListReports()
			Expect(err).NotTo(HaveOccurred())
			Expect(reports).To(HaveLen(2))
		})
	})

	Describe("DeleteReport", func() {
		BeforeEach(func() {
			Expect(db.SaveReport(&Report{ID: "rpt-1", Name: DraftReportName})).To(Succeed())
		})

		It("should remove the report", func() {
			Expect(db.DeleteReport("rpt-1")).To(Succeed())
			_, err := db.GetReport("rpt-1")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("category mappings", func() {
		It("should save, list, and delete mappings", func() {
			Expect(db.SaveCategoryMapping(&CategoryMapping{Category: "Travel", AccountCode: "6100"})).To(Succeed())
			Expect(db.SaveCategoryMapping(&CategoryMapping{Category: "Meals", AccountCode: "6200"})).To(Succeed())

			mappings, err := db.ListCategoryMappings()
			Expect(err).NotTo(HaveOccurred())
			Expect(mappings).To(HaveLen(2))

			Expect(db.DeleteCategoryMapping("Travel")).To(Succeed())
			mappings, err = db.ListCategoryMappings()
			Expect(err).NotTo(HaveOccurred())
			Expect(mappings).To(HaveLen(1))
			Expect(mappings[0].Category).To(Equal("Meals"))
		})
	})

	Describe("persistence across reopen", func() {
		It("should retain records after close and reopen", func() {
			Expect(db.SaveExpense(&Expense{ID: "exp-1", Title: "Taxi", AmountCents: 1000})).To(Succeed())
			Expect(db.Close()).To(Succeed())

			reopened, err := NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Close()

			saved, err := reopened.GetExpense("exp-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.AmountCents).To(Equal(int64(1000)))
			db = nil
		})
	})
})
