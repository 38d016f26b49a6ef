package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alarmd/alarmd/internal/protocol"
	"github.com/alarmd/alarmd/internal/service/client"
)

// weekdayNames maps flag tokens to weekday bits; bit 0 is Sunday.
var weekdayNames = map[string]uint8{
	"sun": 1 << 0,
	"mon": 1 << 1,
	"tue": 1 << 2,
	"wed": 1 << 3,
	"thu": 1 << 4,
	"fri": 1 << 5,
	"sat": 1 << 6,
}

// newChangeCommand builds the change subcommand. It fetches the current alarm
// first so flags the user did not pass keep their existing values.
//
//nolint:funlen // One flag per alarm field.
func newChangeCommand() *cobra.Command {
	var (
		timeOfDay          string
		days               string
		label              string
		date               string
		toneURI            string
		prealarm           bool
		vibrate            bool
		deleteAfterDismiss bool
	)

	command := &cobra.Command{
		Use:   "change <alarm-id>",
		Short: "Change an alarm's settings.",
		Long: `Changes the settings of an existing alarm. Only the fields named by
flags are modified; everything else keeps its current value.

Repeat days are given as a comma-separated list (e.g. mon,tue,fri), or
"none" for a one-shot alarm. A one-shot date is given as YYYY-MM-DD, or
"none" to clear it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := parseAlarmID(args[0])
			if err != nil {
				return err
			}

			current, err := fetchAlarm(c.Context(), id)
			if err != nil {
				return err
			}

			if c.Flags().Changed("time") {
				hour, minute, err := parseClockTime(timeOfDay)
				if err != nil {
					return err
				}

				current.Hour, current.Minutes = hour, minute
			}

			if c.Flags().Changed("days") {
				mask, err := parseWeekdays(days)
				if err != nil {
					return err
				}

				current.DaysOfWeek = mask
			}

			if c.Flags().Changed("date") {
				if err := applyDate(current, date); err != nil {
					return err
				}
			}

			if c.Flags().Changed("label") {
				current.Label = label
			}

			if c.Flags().Changed("tone") {
				current.ToneURI = toneURI
			}

			if c.Flags().Changed("prealarm") {
				current.IsPrealarm = prealarm
			}

			if c.Flags().Changed("vibrate") {
				current.IsVibrate = vibrate
			}

			if c.Flags().Changed("delete-after-dismiss") {
				current.IsDeleteAfterDismiss = deleteAfterDismiss
			}

			return run(&client.Options{Command: protocol.CommandChange, Alarm: current})
		},
	}

	command.Flags().StringVarP(&timeOfDay, "time", "t", "", "alarm time as hh:mm")
	command.Flags().StringVar(&days, "days", "", "repeat days, e.g. mon,tue,fri or none")
	command.Flags().StringVar(&date, "date", "", "one-shot date as YYYY-MM-DD or none")
	command.Flags().StringVar(&label, "label", "", "alarm description")
	command.Flags().StringVar(&toneURI, "tone", "", "ringtone sound URI")
	command.Flags().BoolVar(&prealarm, "prealarm", false, "enable the pre-alarm warning")
	command.Flags().BoolVar(&vibrate, "vibrate", false, "enable vibration")
	command.Flags().BoolVar(&deleteAfterDismiss, "delete-after-dismiss", false, "remove the alarm once dismissed")

	return command
}

// fetchAlarm retrieves the current settings of one alarm from the daemon.
func fetchAlarm(ctx context.Context, id int) (*protocol.Alarm, error) {
	opts := &client.Options{
		Command:       protocol.CommandList,
		ConfigPath:    configPath,
		ServerAddress: serverAddress,
	}

	result, err := client.Do(ctx, opts)
	if err != nil {
		return nil, err
	}

	for i := range result.Alarms {
		if result.Alarms[i].ID == id {
			return &result.Alarms[i], nil
		}
	}

	return nil, fmt.Errorf("no such alarm: %d", id)
}

// parseWeekdays converts a comma-separated day list to the repeat mask.
func parseWeekdays(arg string) (uint8, error) {
	if strings.EqualFold(arg, "none") {
		return 0, nil
	}

	var mask uint8

	for _, token := range strings.Split(arg, ",") {
		bit, ok := weekdayNames[strings.ToLower(strings.TrimSpace(token))]
		if !ok {
			return 0, fmt.Errorf("unknown weekday %q", token)
		}

		mask |= bit
	}

	if mask == 0 {
		return 0, errors.New("empty day list, use \"none\" for a one-shot alarm")
	}

	return mask, nil
}

// applyDate sets or clears the one-shot date.
func applyDate(alarm *protocol.Alarm, arg string) error {
	if strings.EqualFold(arg, "none") {
		alarm.Date = ""

		return nil
	}

	if _, err := time.ParseInLocation("2006-01-02", arg, time.Local); err != nil {
		return fmt.Errorf("invalid date %q: %w", arg, err)
	}

	alarm.Date = arg

	return nil
}
