package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	groupsCmd := &cobra.Command{Use: "groups", Short: "Group operations"}

	// create
	var name, description, groupType, readAccess, writeAccess string
	var ipRanges []string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			payload := map[string]interface{}{"name": name}
			if description != "" {
				payload["description"] = description
			}
			if groupType != "" {
				payload["groupType"] = groupType
			}
			if readAccess != "" {
				payload["readAccess"] = readAccess
			}
			if writeAccess != "" {
				payload["writeAccess"] = writeAccess
			}
			if len(ipRanges) > 0 {
				payload["ipRanges"] = ipRanges
			}
			data, err := doPostJSON("/api/groups", payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	createCmd.Flags().StringVarP(&name, "name", "n", "", "Group name (required)")
	createCmd.Flags().StringVarP(&description, "description", "d", "", "Group description")
	createCmd.Flags().StringVarP(&groupType, "type", "t", "", "Group type (defaults to UserGroup)")
	createCmd.Flags().StringVar(&readAccess, "read", "", "Read access level")
	createCmd.Flags().StringVar(&writeAccess, "write", "", "Write access level")
	createCmd.Flags().StringSliceVar(&ipRanges, "ip-range", nil, "IP range (repeatable)")
	_ = createCmd.MarkFlagRequired("name")
	groupsCmd.AddCommand(createCmd)

	// list
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet("/api/groups")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	groupsCmd.AddCommand(listCmd)

	// get
	getCmd := &cobra.Command{
		Use:   "get GROUP_ID",
		Short: "Get group by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("/api/groups/%s", args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	groupsCmd.AddCommand(getCmd)

	// delete
	deleteCmd := &cobra.Command{
		Use:   "delete GROUP_ID",
		Short: "Delete a group and its assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doDelete(fmt.Sprintf("/api/groups/%s", args[0]))
		},
	}
	groupsCmd.AddCommand(deleteCmd)

	rootCmd.AddCommand(groupsCmd)
}
