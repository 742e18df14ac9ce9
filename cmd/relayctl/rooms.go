package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "Create and inspect rooms",
}

var roomsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a room",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		maxParticipants, _ := cmd.Flags().GetInt("max")
		room, err := newAPIClient(serverURL).CreateRoom(maxParticipants)
		if err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Room created: ") + room.ID)
		renderRooms([]roomInfo{room})
		return nil
	},
}

var roomsGetCmd = &cobra.Command{
	Use:   "get ROOM_ID",
	Short: "Show one room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, err := newAPIClient(serverURL).GetRoom(args[0])
		if err != nil {
			return err
		}
		renderRooms([]roomInfo{room})
		return nil
	},
}

var roomsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List live rooms with their participants",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api := newAPIClient(serverURL)
		ids, err := api.ListRooms()
		if err != nil {
			return err
		}

		rooms := make([]roomInfo, 0, len(ids))
		for _, id := range ids {
			room, err := api.GetRoom(id)
			if err != nil {
				// Rooms can disappear between the list and the lookup.
				continue
			}
			rooms = append(rooms, room)
		}
		renderRooms(rooms)
		return nil
	},
}

func init() {
	roomsCreateCmd.Flags().Int("max", 0, "maximum participants (server default when 0)")
	roomsCmd.AddCommand(roomsCreateCmd, roomsGetCmd, roomsListCmd)
}
