package confirmation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"hrvault/internal/display"
)

// TableLine is one table of the pending restore, shown in the details view
type TableLine struct {
	Name string
	Rows int
}

// RestorePrompt describes the restore awaiting confirmation
type RestorePrompt struct {
	SourcePath  string
	Destination string
	TableCount  int
	RowCount    int
	Tables      []TableLine
}

// Service prompts the user before a restore replaces existing data
type Service interface {
	ConfirmRestore(prompt RestorePrompt, autoApprove bool) (bool, error)
}

type confirmationService struct {
	display display.Service
	reader  *bufio.Reader
	out     io.Writer
}

// NewService creates a confirmation service reading from stdin
func NewService(displayService display.Service) Service {
	return NewServiceWithReader(displayService, os.Stdin, os.Stdout)
}

// NewServiceWithReader creates a confirmation service with an explicit input
// reader and prompt writer. Tests inject scripted input here.
func NewServiceWithReader(displayService display.Service, reader io.Reader, out io.Writer) Service {
	return &confirmationService{
		display: displayService,
		reader:  bufio.NewReader(reader),
		out:     out,
	}
}

// ConfirmRestore shows what the restore will replace and waits for a yes or
// no. Restores are destructive, so the default answer is no. An interrupt
// while waiting counts as a refusal.
func (cs *confirmationService) ConfirmRestore(prompt RestorePrompt, autoApprove bool) (bool, error) {
	cs.displaySummary(prompt)

	if autoApprove {
		cs.display.Info("Auto-approving restore")
		return true, nil
	}

	interrupted := make(chan os.Signal, 1)
	signal.Notify(interrupted, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupted)

	answers := make(chan string, 1)
	readErrs := make(chan error, 1)

	for {
		go func() {
			answer, err := cs.readAnswer()
			if err != nil {
				readErrs <- err
				return
			}
			answers <- answer
		}()

		select {
		case <-interrupted:
			cs.display.Warning("Restore cancelled")
			return false, nil
		case err := <-readErrs:
			return false, fmt.Errorf("failed to read confirmation: %w", err)
		case answer := <-answers:
			switch strings.ToLower(strings.TrimSpace(answer)) {
			case "y", "yes":
				return true, nil
			case "n", "no", "":
				cs.display.Info("Restore cancelled")
				return false, nil
			case "d", "details":
				cs.displayDetails(prompt)
			default:
				fmt.Fprintf(cs.out, "Please answer 'y', 'n', or 'd' for details.\n")
			}
		}
	}
}

func (cs *confirmationService) displaySummary(prompt RestorePrompt) {
	cs.display.Warning("This restore REPLACES all rows in the registered tables.")
	cs.display.PrintSummary("Pending Restore", []display.KeyValue{
		{Key: "Artifact", Value: prompt.SourcePath},
		{Key: "Destination", Value: prompt.Destination},
		{Key: "Tables", Value: display.FormatCount(prompt.TableCount)},
		{Key: "Rows", Value: display.FormatCount(prompt.RowCount)},
	})
}

func (cs *confirmationService) displayDetails(prompt RestorePrompt) {
	rows := make([][]string, len(prompt.Tables))
	for i, table := range prompt.Tables {
		rows[i] = []string{table.Name, display.FormatCount(table.Rows)}
	}
	cs.display.PrintTable([]string{"TABLE", "ROWS"}, rows)
}

func (cs *confirmationService) readAnswer() (string, error) {
	fmt.Fprint(cs.out, "Apply this restore? [y/N/d]: ")
	answer, err := cs.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}
