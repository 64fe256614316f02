package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/shopspring/decimal"

	"github.com/opsdesk/expense-tracker/internal/expense"
	"github.com/opsdesk/expense-tracker/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

const dateLayout = "2006-01-02"

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	_ = godotenv.Load()

	app := newApp()
	if err := app.run(context.Background(), os.Args[1:]); err != nil {
		if !errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// app wires flags, the service, and the command tree together. The service
// is opened lazily so help output never touches the database file.
type app struct {
	root *ff.Command

	dbPath      *string
	storagePath *string
	scannerType *string
	geminiKey   *string
	geminiModel *string
	ollamaURL   *string
	ollamaModel *string

	service *expense.Service
	store   *expense.BoltStore
	scanner scanning.Scanner
}

func newApp() *app {
	a := &app{}

	rootFlags := ff.NewFlagSet("expense-tracker")
	a.dbPath = rootFlags.StringLong("db", "expense-tracker.db", "Database file path")
	a.storagePath = rootFlags.StringLong("storage", "./attachments", "Attachment storage directory")
	a.scannerType = rootFlags.StringLong("scanner", "gemini", "Scanner type for the scan command: 'gemini' or 'ollama'")
	a.geminiKey = rootFlags.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
	a.geminiModel = rootFlags.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
	a.ollamaURL = rootFlags.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
	a.ollamaModel = rootFlags.StringLong("ollama-model", "llava", "Ollama model name")
	rootFlags.BoolLong("version", "Show version information")

	addFlags := ff.NewFlagSet("add").SetParent(rootFlags)
	addVendor := addFlags.StringLong("vendor", "", "Vendor name (required)")
	addAmount := addFlags.StringLong("amount", "", "Amount, e.g. 12.50 (required)")
	addCategory := addFlags.StringLong("category", "", "Expense category")
	addDescription := addFlags.StringLong("description", "", "Free-text description")
	addPayment := addFlags.StringLong("payment", expense.PaymentCredit, "Payment method (Cash/Credit/Debit/Check or custom)")
	addDate := addFlags.StringLong("date", "", "Purchase date YYYY-MM-DD (defaults to today)")
	addAttach := addFlags.StringLong("attach", "", "Path to a receipt image/PDF to store with the record")

	listFlags := ff.NewFlagSet("list").SetParent(rootFlags)
	listCategory := listFlags.StringLong("category", "", "Filter by category")
	listPayment := listFlags.StringLong("payment", "", "Filter by payment method")
	listFrom := listFlags.StringLong("from", "", "Filter from date YYYY-MM-DD (inclusive)")
	listTo := listFlags.StringLong("to", "", "Filter to date YYYY-MM-DD (inclusive)")
	listNewest := listFlags.BoolLong("newest", "Sort by date, newest first")

	scanFlags := ff.NewFlagSet("scan").SetParent(rootFlags)
	scanPayment := scanFlags.StringLong("payment", expense.PaymentCredit, "Payment method to record")

	categoriesFlags := ff.NewFlagSet("categories").SetParent(rootFlags)
	registerCategory := categoriesFlags.StringLong("register", "", "Register a new category")

	attachmentFlags := ff.NewFlagSet("attachment").SetParent(rootFlags)
	attachmentOut := attachmentFlags.StringLong("out", "", "Output file (defaults to the stored filename)")

	reportCreateFlags := ff.NewFlagSet("report create").SetParent(rootFlags)
	reportTitle := reportCreateFlags.StringLong("title", "", "Report title (required)")
	reportEmployee := reportCreateFlags.StringLong("employee", "", "Employee name (required)")
	reportDepartment := reportCreateFlags.StringLong("department", "", "Department (required)")
	reportStart := reportCreateFlags.StringLong("start", "", "Period start YYYY-MM-DD (required)")
	reportEnd := reportCreateFlags.StringLong("end", "", "Period end YYYY-MM-DD (required)")
	reportReceipts := reportCreateFlags.StringLong("receipts", "", "Comma-separated receipt IDs")

	reportListFlags := ff.NewFlagSet("report list").SetParent(rootFlags)
	reportListStatus := reportListFlags.StringLong("status", "", "Filter by status (draft/submitted/approved/rejected)")
	reportListDepartment := reportListFlags.StringLong("department", "", "Filter by department")
	reportListEmployee := reportListFlags.StringLong("employee", "", "Filter by employee name")
	reportListFrom := reportListFlags.StringLong("from", "", "Select reports whose period overlaps from this date")
	reportListTo := reportListFlags.StringLong("to", "", "Select reports whose period overlaps up to this date")

	summaryFlags := ff.NewFlagSet("summary").SetParent(rootFlags)
	summaryFrom := summaryFlags.StringLong("from", "", "Summary start date YYYY-MM-DD (required)")
	summaryTo := summaryFlags.StringLong("to", "", "Summary end date YYYY-MM-DD (required)")

	exportFlags := ff.NewFlagSet("export").SetParent(rootFlags)
	exportFrom := exportFlags.StringLong("from", "", "Export from date YYYY-MM-DD (inclusive)")
	exportTo := exportFlags.StringLong("to", "", "Export to date YYYY-MM-DD (inclusive)")
	exportOut := exportFlags.StringLong("out", "", "Output CSV file (defaults to stdout)")

	reportCmd := &ff.Command{
		Name:      "report",
		Usage:     "expense-tracker report <subcommand> ...",
		ShortHelp: "Manage expense reports",
		Flags:     ff.NewFlagSet("report").SetParent(rootFlags),
		Subcommands: []*ff.Command{
			{
				Name:      "create",
				Usage:     "expense-tracker report create --title ... --employee ... --department ... --start ... --end ... --receipts id1,id2",
				ShortHelp: "Create a draft expense report from existing receipts",
				Flags:     reportCreateFlags,
				Exec: func(ctx context.Context, args []string) error {
					return a.withService(func() error {
						start, err := parseDate(*reportStart, "start")
						if err != nil {
							return err
						}
						end, err := parseDate(*reportEnd, "end")
						if err != nil {
							return err
						}
						var ids []string
						for _, id := range strings.Split(*reportReceipts, ",") {
							if id = strings.TrimSpace(id); id != "" {
								ids = append(ids, id)
							}
						}
						report, err := a.service.CreateReport(expense.CreateReportParams{
							Title:        *reportTitle,
							EmployeeName: *reportEmployee,
							Department:   *reportDepartment,
							PeriodStart:  start,
							PeriodEnd:    end,
							ReceiptIDs:   ids,
						})
						if err = reportPersistence(err); err != nil {
							return err
						}
						fmt.Printf("Created report %s (total $%s, %d receipts)\n",
							report.ID, report.TotalAmount.StringFixed(2), len(report.ReceiptIDs))
						return nil
					})
				},
			},
			a.reportTransitionCommand("submit", "Submit a draft report for approval",
				func(id string) (*expense.ExpenseReport, error) { return a.service.SubmitReport(id) }, rootFlags),
			a.reportTransitionCommand("approve", "Approve a submitted report",
				func(id string) (*expense.ExpenseReport, error) { return a.service.ApproveReport(id) }, rootFlags),
			a.reportTransitionCommand("reject", "Reject a submitted report",
				func(id string) (*expense.ExpenseReport, error) { return a.service.RejectReport(id) }, rootFlags),
			{
				Name:      "show",
				Usage:     "expense-tracker report show <id>",
				ShortHelp: "Show one expense report",
				Flags:     ff.NewFlagSet("report show").SetParent(rootFlags),
				Exec: func(ctx context.Context, args []string) error {
					if len(args) != 1 {
						return fmt.Errorf("usage: report show <id>")
					}
					return a.withService(func() error {
						report, err := a.service.GetReport(args[0])
						if err != nil {
							return err
						}
						printReport(report)
						return nil
					})
				},
			},
			{
				Name:      "list",
				Usage:     "expense-tracker report list [flags]",
				ShortHelp: "List expense reports",
				Flags:     reportListFlags,
				Exec: func(ctx context.Context, args []string) error {
					return a.withService(func() error {
						filter := expense.ReportFilter{
							Status:     expense.Status(*reportListStatus),
							Department: *reportListDepartment,
							Employee:   *reportListEmployee,
						}
						var err error
						if filter.From, err = parseOptionalDate(*reportListFrom, "from"); err != nil {
							return err
						}
						if filter.To, err = parseOptionalDate(*reportListTo, "to"); err != nil {
							return err
						}
						reports := a.service.ListReports(filter)
						if len(reports) == 0 {
							fmt.Println("No expense reports found.")
							return nil
						}
						for _, r := range reports {
							printReport(r)
						}
						return nil
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "expense-tracker report delete <id>",
				ShortHelp: "Delete an expense report",
				Flags:     ff.NewFlagSet("report delete").SetParent(rootFlags),
				Exec: func(ctx context.Context, args []string) error {
					if len(args) != 1 {
						return fmt.Errorf("usage: report delete <id>")
					}
					return a.withService(func() error {
						if err := reportPersistence(a.service.DeleteReport(args[0])); err != nil {
							return err
						}
						fmt.Printf("Deleted report %s\n", args[0])
						return nil
					})
				},
			},
		},
	}

	a.root = &ff.Command{
		Name:      "expense-tracker",
		Usage:     "expense-tracker [flags] <subcommand> ...",
		ShortHelp: "Track receipts, expense reports, and spending summaries",
		Flags:     rootFlags,
		Subcommands: []*ff.Command{
			{
				Name:      "add",
				Usage:     "expense-tracker add --vendor ... --amount ... [flags]",
				ShortHelp: "Record a new receipt",
				Flags:     addFlags,
				Exec: func(ctx context.Context, args []string) error {
					return a.withService(func() error {
						amount, err := decimal.NewFromString(strings.TrimSpace(*addAmount))
						if err != nil {
							return fmt.Errorf("invalid amount %q: %w", *addAmount, err)
						}
						params := expense.AddReceiptParams{
							Vendor:        *addVendor,
							Amount:        amount,
							Category:      *addCategory,
							Description:   *addDescription,
							PaymentMethod: *addPayment,
						}
						if *addDate != "" {
							if params.Date, err = parseDate(*addDate, "date"); err != nil {
								return err
							}
						}
						if *addAttach != "" {
							data, err := os.ReadFile(*addAttach)
							if err != nil {
								return fmt.Errorf("reading attachment: %w", err)
							}
							params.Attachment = data
							params.AttachmentName = filepath.Base(*addAttach)
						}
						receipt, err := a.service.AddReceipt(params)
						if err = reportPersistence(err); err != nil {
							return err
						}
						fmt.Printf("Added receipt %s\n", receipt.ID)
						if receipt.CustomCategory {
							fmt.Printf("Note: %q is not a registered category\n", receipt.Category)
						}
						return nil
					})
				},
			},
			{
				Name:      "show",
				Usage:     "expense-tracker show <id>",
				ShortHelp: "Show one receipt",
				Flags:     ff.NewFlagSet("show").SetParent(rootFlags),
				Exec: func(ctx context.Context, args []string) error {
					if len(args) != 1 {
						return fmt.Errorf("usage: show <id>")
					}
					return a.withService(func() error {
						receipt, err := a.service.GetReceipt(args[0])
						if err != nil {
							return err
						}
						printReceipt(receipt)
						return nil
					})
				},
			},
			{
				Name:      "list",
				Usage:     "expense-tracker list [flags]",
				ShortHelp: "List receipts",
				Flags:     listFlags,
				Exec: func(ctx context.Context, args []string) error {
					return a.withService(func() error {
						filter := expense.ReceiptFilter{
							Category:      *listCategory,
							PaymentMethod: *listPayment,
							NewestFirst:   *listNewest,
						}
						var err error
						if filter.From, err = parseOptionalDate(*listFrom, "from"); err != nil {
							return err
						}
						if filter.To, err = parseOptionalDate(*listTo, "to"); err != nil {
							return err
						}
						receipts := a.service.ListReceipts(filter)
						if len(receipts) == 0 {
							fmt.Println("No receipts found.")
							return nil
						}
						for _, r := range receipts {
							printReceipt(r)
						}
						return nil
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "expense-tracker delete <id>",
				ShortHelp: "Delete a receipt",
				Flags:     ff.NewFlagSet("delete").SetParent(rootFlags),
				Exec: func(ctx context.Context, args []string) error {
					if len(args) != 1 {
						return fmt.Errorf("usage: delete <id>")
					}
					return a.withService(func() error {
						if err := reportPersistence(a.service.DeleteReceipt(args[0])); err != nil {
							return err
						}
						fmt.Printf("Deleted receipt %s\n", args[0])
						return nil
					})
				},
			},
			{
				Name:      "scan",
				Usage:     "expense-tracker scan <file> [flags]",
				ShortHelp: "Scan a receipt image/PDF and record a receipt from it",
				Flags:     scanFlags,
				Exec: func(ctx context.Context, args []string) error {
					if len(args) != 1 {
						return fmt.Errorf("usage: scan <file>")
					}
					if err := a.openScanner(); err != nil {
						return err
					}
					return a.withService(func() error {
						data, err := os.ReadFile(args[0])
						if err != nil {
							return fmt.Errorf("reading file: %w", err)
						}
						contentType := mime.TypeByExtension(filepath.Ext(args[0]))
						receipt, err := a.service.ScanReceipt(filepath.Base(args[0]), data, contentType, *scanPayment)
						if err = reportPersistence(err); err != nil {
							return err
						}
						fmt.Printf("Scanned and added receipt %s\n", receipt.ID)
						printReceipt(receipt)
						return nil
					})
				},
			},
			{
				Name:      "attachment",
				Usage:     "expense-tracker attachment <id> [--out file]",
				ShortHelp: "Write a receipt's stored attachment to a file",
				Flags:     attachmentFlags,
				Exec: func(ctx context.Context, args []string) error {
					if len(args) != 1 {
						return fmt.Errorf("usage: attachment <id>")
					}
					return a.withService(func() error {
						receipt, err := a.service.GetReceipt(args[0])
						if err != nil {
							return err
						}
						data, err := a.service.GetAttachment(args[0])
						if err != nil {
							return err
						}
						out := *attachmentOut
						if out == "" {
							out = filepath.Base(receipt.AttachmentPath)
						}
						if err := os.WriteFile(out, data, 0644); err != nil {
							return fmt.Errorf("writing attachment: %w", err)
						}
						fmt.Printf("Wrote %s (%d bytes)\n", out, len(data))
						return nil
					})
				},
			},
			{
				Name:      "categories",
				Usage:     "expense-tracker categories [--register name]",
				ShortHelp: "List or register expense categories",
				Flags:     categoriesFlags,
				Exec: func(ctx context.Context, args []string) error {
					return a.withService(func() error {
						categories := a.service.Categories()
						if *registerCategory != "" {
							var err error
							categories, err = a.service.RegisterCategory(*registerCategory)
							if err = reportPersistence(err); err != nil {
								return err
							}
						}
						for i, c := range categories {
							fmt.Printf("%2d. %s\n", i+1, c)
						}
						return nil
					})
				},
			},
			reportCmd,
			{
				Name:      "summary",
				Usage:     "expense-tracker summary --from YYYY-MM-DD --to YYYY-MM-DD",
				ShortHelp: "Aggregate spending over a date range",
				Flags:     summaryFlags,
				Exec: func(ctx context.Context, args []string) error {
					return a.withService(func() error {
						from, err := parseDate(*summaryFrom, "from")
						if err != nil {
							return err
						}
						to, err := parseDate(*summaryTo, "to")
						if err != nil {
							return err
						}
						printSummary(a.service.GenerateSummary(from, to))
						return nil
					})
				},
			},
			{
				Name:      "export",
				Usage:     "expense-tracker export [flags]",
				ShortHelp: "Export receipts as CSV",
				Flags:     exportFlags,
				Exec: func(ctx context.Context, args []string) error {
					return a.withService(func() error {
						var filter expense.ReceiptFilter
						var err error
						if filter.From, err = parseOptionalDate(*exportFrom, "from"); err != nil {
							return err
						}
						if filter.To, err = parseOptionalDate(*exportTo, "to"); err != nil {
							return err
						}
						receipts := a.service.ListReceipts(filter)
						data, err := expense.ExportCSV(receipts)
						if err != nil {
							return err
						}
						if *exportOut == "" {
							_, err = os.Stdout.Write(data)
							return err
						}
						if err := os.WriteFile(*exportOut, data, 0644); err != nil {
							return fmt.Errorf("writing CSV: %w", err)
						}
						fmt.Printf("Exported %d receipts to %s\n", len(receipts), *exportOut)
						return nil
					})
				},
			},
		},
	}

	return a
}

// reportTransitionCommand builds the submit/approve/reject subcommands,
// which differ only in the service call.
func (a *app) reportTransitionCommand(name, shortHelp string, transition func(id string) (*expense.ExpenseReport, error), rootFlags *ff.FlagSet) *ff.Command {
	return &ff.Command{
		Name:      name,
		Usage:     fmt.Sprintf("expense-tracker report %s <id>", name),
		ShortHelp: shortHelp,
		Flags:     ff.NewFlagSet("report " + name).SetParent(rootFlags),
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: report %s <id>", name)
			}
			return a.withService(func() error {
				report, err := transition(args[0])
				if err = reportPersistence(err); err != nil {
					return err
				}
				fmt.Printf("Report %s is now %s\n", report.ID, report.Status)
				return nil
			})
		},
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	defer a.close()
	err := a.root.ParseAndRun(ctx, args, ff.WithEnvVarPrefix("EXPENSE_TRACKER"))
	if errors.Is(err, ff.ErrHelp) {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(a.root))
	}
	return err
}

// withService opens the database and storage on first use, then runs fn.
func (a *app) withService(fn func() error) error {
	if a.service == nil {
		store, err := expense.NewBoltStore(*a.dbPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		files, err := expense.NewLocalStorage(*a.storagePath)
		if err != nil {
			store.Close()
			return fmt.Errorf("opening storage: %w", err)
		}
		service, err := expense.NewService(store, files, a.scanner)
		if err != nil {
			store.Close()
			return err
		}
		a.store = store
		a.service = service
	}
	return fn()
}

// openScanner initializes the configured scanner; must run before
// withService so the service picks it up.
func (a *app) openScanner() error {
	if a.scanner != nil {
		return nil
	}
	switch *a.scannerType {
	case "gemini":
		apiKey := *a.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		scanner, err := scanning.NewGemini(apiKey, *a.geminiModel)
		if err != nil {
			return fmt.Errorf("initializing gemini: %w", err)
		}
		a.scanner = scanner
	case "ollama":
		scanner, err := scanning.NewOllama(*a.ollamaURL, *a.ollamaModel)
		if err != nil {
			return fmt.Errorf("initializing ollama: %w", err)
		}
		a.scanner = scanner
	default:
		return fmt.Errorf("invalid scanner type %q: use 'gemini' or 'ollama'", *a.scannerType)
	}
	return nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.scanner != nil {
		a.scanner.Close()
	}
}

// reportPersistence downgrades a PersistenceError to a warning: the
// in-memory operation succeeded, only the flush to disk failed.
func reportPersistence(err error) error {
	var perr *expense.PersistenceError
	if errors.As(err, &perr) {
		fmt.Fprintf(os.Stderr, "warning: %v (in-memory state is ahead of disk)\n", perr)
		return nil
	}
	return err
}

func parseDate(value, name string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s date %q: expected YYYY-MM-DD", name, value)
	}
	return t, nil
}

func parseOptionalDate(value, name string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := parseDate(value, name)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func printReceipt(r *expense.Receipt) {
	fmt.Printf("\nReceipt %s\n", r.ID)
	fmt.Printf("  Date:           %s\n", r.Date.Format(dateLayout))
	fmt.Printf("  Vendor:         %s\n", r.Vendor)
	fmt.Printf("  Amount:         $%s\n", r.Amount.StringFixed(2))
	category := r.Category
	if r.CustomCategory {
		category += " (custom)"
	}
	fmt.Printf("  Category:       %s\n", category)
	if r.Description != "" {
		fmt.Printf("  Description:    %s\n", r.Description)
	}
	fmt.Printf("  Payment Method: %s\n", r.PaymentMethod)
	if r.AttachmentPath != "" {
		fmt.Printf("  Attachment:     %s\n", r.AttachmentPath)
	}
}

func printReport(r *expense.ExpenseReport) {
	fmt.Printf("\nExpense Report %s\n", r.ID)
	fmt.Printf("  Title:    %s\n", r.Title)
	fmt.Printf("  Employee: %s (%s)\n", r.EmployeeName, r.Department)
	fmt.Printf("  Period:   %s to %s\n", r.PeriodStart.Format(dateLayout), r.PeriodEnd.Format(dateLayout))
	fmt.Printf("  Status:   %s\n", strings.ToUpper(string(r.Status)))
	fmt.Printf("  Total:    $%s\n", r.TotalAmount.StringFixed(2))
	fmt.Printf("  Receipts: %d items\n", len(r.ReceiptIDs))
}

func printSummary(s *expense.Summary) {
	fmt.Printf("\nSummary Report (%s to %s)\n", s.PeriodStart.Format(dateLayout), s.PeriodEnd.Format(dateLayout))
	fmt.Printf("  Total Receipts: %d\n", s.Count)
	fmt.Printf("  Total Amount:   $%s\n", s.TotalAmount.StringFixed(2))
	fmt.Printf("  Average:        $%s\n", s.AverageAmount.StringFixed(2))

	fmt.Println("\n  By Category:")
	for category, amount := range s.ByCategory {
		fmt.Printf("    %s: $%s\n", category, amount.StringFixed(2))
	}

	fmt.Println("\n  By Payment Method:")
	for method, amount := range s.ByPaymentMethod {
		fmt.Printf("    %s: $%s\n", method, amount.StringFixed(2))
	}
}
