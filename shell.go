package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-catalog/library"
)

func (a *app) shellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive library console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			a.runShell(in, cmd.OutOrStdout(), isTerminal(in))
			return nil
		},
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// shell reads commands line by line. Prompts are printed only when a person
// is typing; piped input gets the command output alone.
type shell struct {
	app         *app
	sc          *bufio.Scanner
	w           io.Writer
	interactive bool
}

func (a *app) runShell(r io.Reader, w io.Writer, interactive bool) {
	sh := &shell{app: a, sc: bufio.NewScanner(r), w: w, interactive: interactive}

	if interactive {
		fmt.Fprintln(w, "Welcome to the Library Catalog!")
		fmt.Fprintln(w, "Available commands:")
		fmt.Fprintln(w, "  Books: add book, list books, search book")
		fmt.Fprintln(w, "  Members: add member, list members")
		fmt.Fprintln(w, "  Circulation: loan, return, list loans")
		fmt.Fprintln(w, "  System: exit")
	}

	for {
		sh.prompt("\n> ")
		if !sh.sc.Scan() {
			break
		}
		cmd := strings.TrimSpace(sh.sc.Text())

		switch cmd {
		case "add book":
			sh.handleAddBook()
		case "add member":
			sh.handleAddMember()
		case "list books":
			printBooks(w, a.catalog.ListBooks())
		case "list members":
			printMembers(w, a.catalog.ListMembers())
		case "list loans":
			printLoans(w, a.catalog.ListLoans())
		case "search book":
			sh.handleSearchBooks()
		case "loan":
			sh.handleLoan()
		case "return":
			sh.handleReturn()
		case "":
			continue
		case "exit":
			if interactive {
				fmt.Fprintln(w, "Goodbye!")
			}
			return
		default:
			fmt.Fprintln(w, "Unknown command. Type one of the available commands listed above.")
		}
	}
}

func (sh *shell) prompt(s string) {
	if sh.interactive {
		fmt.Fprint(sh.w, s)
	}
}

// ask prints label and returns the next trimmed line.
func (sh *shell) ask(label string) (string, bool) {
	sh.prompt(label)
	if !sh.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sh.sc.Text()), true
}

func (sh *shell) askID(label, kind string) (int64, bool) {
	s, ok := sh.ask(label)
	if !ok {
		return 0, false
	}
	id, err := parseID(kind, s)
	if err != nil {
		fmt.Fprintf(sh.w, "Invalid %s ID: %s\n", kind, s)
		return 0, false
	}
	return id, true
}

func (sh *shell) handleAddBook() {
	var p library.AddBookParams
	var ok bool
	if p.Title, ok = sh.ask("Title: "); !ok {
		return
	}
	if p.Author, ok = sh.ask("Author: "); !ok {
		return
	}
	if p.ISBN, ok = sh.ask("ISBN: "); !ok {
		return
	}
	yearStr, ok := sh.ask("Year: ")
	if !ok {
		return
	}
	if yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			fmt.Fprintf(sh.w, "Invalid year: %s\n", yearStr)
			return
		}
		p.Year = year
	}

	book, err := sh.app.catalog.AddBook(p)
	if err != nil {
		fmt.Fprintf(sh.w, "Error adding book: %v\n", err)
		return
	}
	fmt.Fprintf(sh.w, "Added book ID %d.\n", book.ID)
}

func (sh *shell) handleAddMember() {
	var p library.RegisterMemberParams
	var ok bool
	if p.Name, ok = sh.ask("Name: "); !ok {
		return
	}
	if p.Email, ok = sh.ask("Email: "); !ok {
		return
	}
	if p.Phone, ok = sh.ask("Phone: "); !ok {
		return
	}

	member, err := sh.app.catalog.RegisterMember(p)
	if err != nil {
		fmt.Fprintf(sh.w, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(sh.w, "Added member '%s' with ID %d\n", member.Name, member.ID)
}

func (sh *shell) handleSearchBooks() {
	query, ok := sh.ask("Query: ")
	if !ok {
		return
	}
	sh.app.searchBooks(sh.w, query)
}

func (sh *shell) handleLoan() {
	memberID, ok := sh.askID("Member ID: ", "member")
	if !ok {
		return
	}
	bookID, ok := sh.askID("Book ID: ", "book")
	if !ok {
		return
	}
	if err := sh.app.createLoan(sh.w, memberID, bookID); err != nil {
		fmt.Fprintf(sh.w, "Error creating loan: %v\n", err)
	}
}

func (sh *shell) handleReturn() {
	loanID, ok := sh.askID("Loan ID: ", "loan")
	if !ok {
		return
	}
	if err := sh.app.returnLoan(sh.w, loanID); err != nil {
		fmt.Fprintf(sh.w, "Error returning loan: %v\n", err)
	}
}
