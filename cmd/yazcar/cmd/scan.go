package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yazcar/yazcarfax/internal/domain/vehicle"
	"github.com/yazcar/yazcarfax/internal/service"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Look cars up by scanned QR code",
	Long: `Read scanned codes from stdin, one per line, and show the matching car.

After a match further codes are ignored until an empty line dismisses the
result. Repeating the last matched code is ignored. Requires an admin or
shop owner session.

Example:
  printf 'car-1\n\ncar-2\n' | yazcar scan`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), cmd.ErrOrStderr(), func(ctx context.Context, app *clientApp) error {
			if _, err := app.manager.Launch(ctx); err != nil {
				app.logger.Warn("launch completed with errors", "error", err)
			}
			scanner := service.NewScanSession(app.manager.Store(), app.directory, app.cfg.BackendTimeout(), app.logger)
			return runScanLoop(ctx, scanner, cmd.InOrStdin(), cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

// runScanLoop feeds each input line to scanner until EOF or ctx ends.
// An empty line dismisses the open result.
func runScanLoop(ctx context.Context, scanner *service.ScanSession, in io.Reader, out io.Writer) error {
	lines := bufio.NewScanner(in)
	for lines.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code := strings.TrimSpace(lines.Text())
		if code == "" {
			scanner.Rearm()
			continue
		}

		car, err := scanner.Scan(ctx, code)
		switch {
		case err == nil:
			printCar(out, car)
		case errors.Is(err, service.ErrScanPending), errors.Is(err, service.ErrDuplicateScan):
			// The camera keeps reporting codes while a result is open.
		case errors.Is(err, service.ErrForbidden):
			return err
		case errors.Is(err, vehicle.ErrCarNotFound):
			fmt.Fprintf(out, "No car found for %q\n", code)
		default:
			fmt.Fprintf(out, "Lookup failed: %s\n", userMessage(err))
		}
	}
	return lines.Err()
}

func printCar(w io.Writer, c *vehicle.Car) {
	fmt.Fprintf(w, "%d %s %s  [%s]\n", c.Year, c.Make, c.Model, c.PlateNumber)
	if c.Customer != nil {
		fmt.Fprintf(w, "  owner: %s %s\n", c.Customer.Name, c.Customer.Phone)
	}
	fmt.Fprintf(w, "  id:    %s\n", c.ID)
}
