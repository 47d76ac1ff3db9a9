package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	// assign
	var fromDate, toDate string
	assignCmd := &cobra.Command{
		Use:   "assign GROUP_ID OBJECT_TYPE OBJECT_ID",
		Short: "Assign an object to a group",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			objectID, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("OBJECT_ID must be an integer: %s", args[2])
			}
			payload := map[string]interface{}{
				"objectType": args[1],
				"objectId":   objectID,
			}
			if fromDate != "" {
				payload["fromDate"] = fromDate
			}
			if toDate != "" {
				payload["toDate"] = toDate
			}
			_, err = doPostJSON(fmt.Sprintf("/api/groups/%s/assignments", args[0]), payload)
			return err
		},
	}
	assignCmd.Flags().StringVar(&fromDate, "from", "", "Assignment start (RFC 3339)")
	assignCmd.Flags().StringVar(&toDate, "to", "", "Assignment end (RFC 3339)")
	rootCmd.AddCommand(assignCmd)

	// unassign
	unassignCmd := &cobra.Command{
		Use:   "unassign GROUP_ID OBJECT_TYPE [OBJECT_ID]",
		Short: "Remove assignments (all of the type, or a single object)",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/groups/%s/assignments/%s", args[0], args[1])
			if len(args) == 3 {
				path = fmt.Sprintf("%s/%s", path, args[2])
			}
			return doDelete(path)
		},
	}
	rootCmd.AddCommand(unassignCmd)

	// check
	checkCmd := &cobra.Command{
		Use:   "check GROUP_ID OBJECT_TYPE OBJECT_ID",
		Short: "Check object membership in a group",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("/api/groups/%s/membership/%s/%s", args[0], args[1], args[2]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(checkCmd)

	// members
	membersCmd := &cobra.Command{
		Use:   "members GROUP_ID OBJECT_TYPE",
		Short: "List the full member set of a group for an object type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("/api/groups/%s/members/%s", args[0], args[1]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(membersCmd)

	// assignments
	assignmentsCmd := &cobra.Command{
		Use:   "assignments GROUP_ID OBJECT_TYPE",
		Short: "List direct assignments of a type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("/api/groups/%s/assignments/%s", args[0], args[1]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(assignmentsCmd)
}
