package main

import (
	"encoding/json"
	"io"

	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/go-go-golems/coder/pkg/session"
	"github.com/go-go-golems/coder/pkg/store"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConversationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "Inspect stored conversations",
	}
	cmd.PersistentFlags().String("output", "yaml", "Output format (yaml, json)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			personaFlag, _ := cmd.Flags().GetString("persona")
			limit, _ := cmd.Flags().GetInt("limit")
			output, _ := cmd.Flags().GetString("output")

			var persona conversation.Persona
			if personaFlag != "" {
				p, err := conversation.ParsePersona(personaFlag)
				if err != nil {
					return err
				}
				persona = p
			}

			return withSession(cmd, func(sess *store.Session) error {
				convs, err := sess.ListConversations(cmd.Context(), persona, limit)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), output, convs)
			})
		},
	}
	list.Flags().String("persona", "", "Only list conversations of this persona (ask, edit)")
	list.Flags().Int("limit", 50, "Maximum number of conversations (0 for all)")

	show := &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Show the messages and files of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			personaFlag, _ := cmd.Flags().GetString("persona")
			output, _ := cmd.Flags().GetString("output")
			persona, err := conversation.ParsePersona(personaFlag)
			if err != nil {
				return err
			}

			return withSession(cmd, func(sess *store.Session) error {
				conv, err := sess.GetConversation(cmd.Context(), args[0], persona)
				if err != nil {
					return err
				}
				msgs, err := sess.ListMessages(cmd.Context(), conv.ID)
				if err != nil {
					return err
				}
				if err := sess.LoadFiles(cmd.Context(), msgs); err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), output, &session.History{Conversation: conv, Messages: msgs})
			})
		},
	}
	show.Flags().String("persona", string(conversation.PersonaAsk), "Persona the conversation is bound to (ask, edit)")

	cmd.AddCommand(list, show)
	return cmd
}

func withSession(cmd *cobra.Command, fn func(sess *store.Session) error) error {
	settings, err := storeSettingsFromViper()
	if err != nil {
		return err
	}
	st, err := store.Open(cmd.Context(), settings)
	if err != nil {
		return err
	}
	defer st.Close()

	sess, err := st.Acquire(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(sess)
}

func render(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return errors.Errorf("unknown output format %q", format)
	}
}
