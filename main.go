package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/spf13/cobra"

	"library-catalog/config"
	"library-catalog/library"
)

const sqliteDataFile = "library.db"

// app carries the state shared by every subcommand.
type app struct {
	log logger.Logger

	configFile string
	dataFile   string
	backend    string

	catalog *library.Catalog
	closer  func() error
}

func main() {
	log := logger.New()
	a := &app{log: log}

	if err := a.rootCommand().Execute(); err != nil {
		log.Err(err).Fatal("command failed")
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "library",
		Short:         "Manage a small library's books, members and loans",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.dataFile, "data", "", "path to the catalog data file")
	root.PersistentFlags().StringVar(&a.backend, "backend", "", "storage backend: json or sqlite")

	root.AddCommand(
		a.addBookCommand(),
		a.addMemberCommand(),
		a.loanCommand(),
		a.returnCommand(),
		a.listCommand(),
		a.searchCommand(),
		a.shellCommand(),
	)
	return root
}

// open resolves configuration, builds the store and loads the catalog.
func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.New(a.configFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("backend") {
		cfg.Backend = a.backend
	}
	if cmd.Flags().Changed("data") {
		cfg.DataFile = a.dataFile
	}

	store, closer, err := newStore(cfg)
	if err != nil {
		return err
	}

	catalog, err := library.Open(store, library.WithLogger(a.log))
	if err != nil {
		_ = closer()
		return err
	}
	a.catalog = catalog
	a.closer = closer
	return nil
}

func (a *app) close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}

func newStore(cfg *config.Config) (library.Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendJSON:
		return library.NewJSONStore(cfg.DataFile, cfg.VerifyChecksum), func() error { return nil }, nil
	case config.BackendSQLite:
		path := cfg.DataFile
		if path == library.DefaultDataFile {
			path = sqliteDataFile
		}
		store, err := library.NewSQLiteStore(path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown backend %q", cfg.Backend)
	}
}

// ------------------ Commands ------------------

func (a *app) addBookCommand() *cobra.Command {
	var p library.AddBookParams
	cmd := &cobra.Command{
		Use:   "add-book",
		Short: "Add a book to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := a.catalog.AddBook(p)
			if err != nil {
				return errors.Wrap(err, "add book")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added book ID %d.\n", book.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&p.Title, "title", "", "book title")
	cmd.Flags().StringVar(&p.Author, "author", "", "book author")
	cmd.Flags().StringVar(&p.ISBN, "isbn", "", "10 or 13 digit ISBN")
	cmd.Flags().IntVar(&p.Year, "year", 0, "publication year")
	return cmd
}

func (a *app) addMemberCommand() *cobra.Command {
	var p library.RegisterMemberParams
	cmd := &cobra.Command{
		Use:   "add-member",
		Short: "Register a library member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			member, err := a.catalog.RegisterMember(p)
			if err != nil {
				return errors.Wrap(err, "add member")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added member '%s' with ID %d\n", member.Name, member.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&p.Name, "name", "", "member name")
	cmd.Flags().StringVar(&p.Email, "email", "", "member email")
	cmd.Flags().StringVar(&p.Phone, "phone", "", "member phone")
	return cmd
}

func (a *app) loanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "loan <member-id> <book-id>",
		Short: "Lend a book to a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			memberID, err := parseID("member", args[0])
			if err != nil {
				return err
			}
			bookID, err := parseID("book", args[1])
			if err != nil {
				return err
			}
			return a.createLoan(cmd.OutOrStdout(), memberID, bookID)
		},
	}
}

func (a *app) returnCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "return <loan-id>",
		Short: "Return a loaned book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loanID, err := parseID("loan", args[0])
			if err != nil {
				return err
			}
			return a.returnLoan(cmd.OutOrStdout(), loanID)
		},
	}
}

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "list books|members|loans",
		Short:     "List books, members or loans",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"books", "members", "loans"},
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			switch args[0] {
			case "books":
				printBooks(w, a.catalog.ListBooks())
			case "members":
				printMembers(w, a.catalog.ListMembers())
			case "loans":
				printLoans(w, a.catalog.ListLoans())
			default:
				return errors.Errorf("unknown listing %q", args[0])
			}
			return nil
		},
	}
}

func (a *app) searchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search books by title, author or ISBN",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.searchBooks(cmd.OutOrStdout(), strings.Join(args, " "))
			return nil
		},
	}
}

// ------------------ Shared handlers ------------------

func (a *app) createLoan(w io.Writer, memberID, bookID int64) error {
	loan, err := a.catalog.CreateLoan(memberID, bookID)
	if err != nil {
		return errors.Wrap(err, "create loan")
	}
	member, _ := a.catalog.FindMemberByID(memberID)
	book, _ := a.catalog.FindBookByID(bookID)
	fmt.Fprintf(w, "Loan %d: '%s' lent to %s\n", loan.ID, book.Title, member.Name)
	return nil
}

func (a *app) returnLoan(w io.Writer, loanID int64) error {
	loan, err := a.catalog.ReturnLoan(loanID)
	if err != nil {
		return errors.Wrap(err, "return loan")
	}
	if book, ok := a.catalog.FindBookByID(loan.BookID); ok {
		fmt.Fprintf(w, "Book '%s' returned and available again\n", book.Title)
	} else {
		fmt.Fprintf(w, "Loan %d returned\n", loan.ID)
	}
	return nil
}

func (a *app) searchBooks(w io.Writer, query string) {
	books := a.catalog.SearchBooks(query)
	if len(books) == 0 {
		fmt.Fprintf(w, "No books found matching '%s'.\n", query)
		return
	}
	fmt.Fprintf(w, "Found %d book(s) matching '%s':\n", len(books), query)
	printBooks(w, books)
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("invalid %s ID: %s", kind, s)
	}
	return id, nil
}

// ------------------ Output ------------------

func printBooks(w io.Writer, books []library.Book) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books in library.")
		return
	}
	fmt.Fprintf(w, "%-5s %-30s %-25s %-14s %-6s %s\n", "ID", "Title", "Author", "ISBN", "Year", "Available")
	fmt.Fprintln(w, strings.Repeat("-", 95))
	for _, b := range books {
		availStr := "Yes"
		if !b.Available {
			availStr = "No"
		}
		fmt.Fprintf(w, "%-5d %-30s %-25s %-14s %-6d %s\n",
			b.ID,
			truncateString(b.Title, 30),
			truncateString(b.Author, 25),
			b.ISBN,
			b.Year,
			availStr)
	}
}

func printMembers(w io.Writer, members []library.Member) {
	if len(members) == 0 {
		fmt.Fprintln(w, "No members registered.")
		return
	}
	fmt.Fprintf(w, "%-5s %-30s %-30s %s\n", "ID", "Name", "Email", "Phone")
	fmt.Fprintln(w, strings.Repeat("-", 85))
	for _, m := range members {
		fmt.Fprintf(w, "%-5d %-30s %-30s %s\n", m.ID, truncateString(m.Name, 30), truncateString(m.Email, 30), m.Phone)
	}
}

func printLoans(w io.Writer, loans []library.LoanView) {
	if len(loans) == 0 {
		fmt.Fprintln(w, "No loans recorded.")
		return
	}
	fmt.Fprintf(w, "%-5s %-25s %-30s %-10s %s\n", "ID", "Member", "Book", "Status", "Loaned At")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, l := range loans {
		status := "Open"
		if l.Returned {
			status = "Returned"
		}
		fmt.Fprintf(w, "%-5d %-25s %-30s %-10s %s\n",
			l.ID,
			truncateString(l.MemberName, 25),
			truncateString(l.BookTitle, 30),
			status,
			l.LoanedAt.Local().Format("2006-01-02 15:04"))
	}
}

func truncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	return string(r[:maxLength-3]) + "..."
}
