package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"golang-reservation-import-service/internal/models"
	"golang-reservation-import-service/internal/store"
	"golang-reservation-import-service/pkg/errors"
	"golang-reservation-import-service/pkg/logger"
)

// Flags shared by checkin and checkout
var (
	stayCode  string
	stayBy    string
	stayNotes string
)

var checkinCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Record a guest's arrival",
	Long: `Checkin marks a confirmed reservation as checked in. It is accepted up to
one day before the check-in date; an early arrival is stamped at 15:00 of
the check-in date.

Example:
  importer checkin --code HMABC123 --by reception --notes "late arrival"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStayTransition(cmd, "check-in", func(r *models.Reservation, at time.Time) error {
			return r.CheckIn(at, stayBy, stayNotes)
		})
	},
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Record a guest's departure",
	Long: `Checkout marks a checked-in reservation as checked out. A departure on a
day other than the check-out date is stamped at 12:00 of the check-out date.

Example:
  importer checkout --code HMABC123`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStayTransition(cmd, "check-out", func(r *models.Reservation, at time.Time) error {
			return r.CheckOut(at, stayBy, stayNotes)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{checkinCmd, checkoutCmd} {
		c.Flags().StringVar(&stayCode, "code", "", "confirmation code of the reservation (required)")
		c.Flags().StringVar(&stayBy, "by", "", "who recorded the transition")
		c.Flags().StringVar(&stayNotes, "notes", "", "free-text notes")
		c.MarkFlagRequired("code")
		rootCmd.AddCommand(c)
	}
}

func runStayTransition(cmd *cobra.Command, transition string, apply func(*models.Reservation, time.Time) error) error {
	code := strings.TrimSpace(stayCode)
	if code == "" {
		return configError("code", fmt.Errorf("confirmation code cannot be empty"))
	}

	gw, err := gatewayFromConfig()
	if err != nil {
		return err
	}
	defer gw.Close()

	r, err := applyStayTransition(cmd.Context(), gw, code, transition, now(), apply)
	if err != nil {
		return err
	}

	logger.WithFields(logger.Fields{
		"confirmation_code": r.ConfirmationCode,
		"transition":        transition,
		"status":            r.Status,
	}).Info("Reservation updated")

	fmt.Fprintf(cmd.OutOrStdout(), "Reservation %s is now %s\n", r.ConfirmationCode, r.Status)
	return nil
}

// applyStayTransition loads the reservation, applies the transition and
// saves it in one transaction
func applyStayTransition(ctx context.Context, gw store.Gateway, code, transition string, at time.Time, apply func(*models.Reservation, time.Time) error) (*models.Reservation, error) {
	var updated *models.Reservation
	err := gw.WithinTx(ctx, func(tx store.Gateway) error {
		r, err := tx.FindReservationByCode(ctx, code)
		if stderrors.Is(err, store.ErrNotFound) {
			return errors.StayTransitionError(errors.CodeReservationNotFound, code, transition, nil)
		}
		if err != nil {
			return storageError("find_reservation", err)
		}

		if err := apply(r, at); err != nil {
			return errors.StayTransitionError(errors.CodeInvalidTransition, code, transition, err)
		}
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return storageError("update_reservation", err)
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
