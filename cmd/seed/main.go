// Command seed populates a store with demo conversations and messages
// through the messaging service, so seed data always matches the
// runtime schema.
package main

import (
	"flag"
	"fmt"
	"os"

	"commsdb/pkg/logger"
	"commsdb/pkg/messaging"
	"commsdb/pkg/models"
	"commsdb/pkg/store"
)

var (
	admin  = models.Party{ID: "u_admin", Name: "Maria Gonzalez", Role: "admin"}
	tenant = models.Party{ID: "u_tenant1", Name: "James Carter", Role: "tenant"}
	owner  = models.Party{ID: "u_owner1", Name: "Priya Shah", Role: "owner"}
)

func main() {
	dbPath := flag.String("db", "./data", "database path to seed")
	flag.Parse()

	logger.Init()
	if err := store.Open(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := seed(); err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("seed complete")
}

func seed() error {
	// tenant -> admin maintenance thread
	convID, err := messaging.CreateConversation(
		[]models.Party{tenant, admin},
		"Leaking faucet in unit 4B",
		&models.RelatedResource{Type: "maintenance", ID: "mnt_1001", Name: "Unit 4B faucet"},
	)
	if err != nil {
		return err
	}
	if _, err := messaging.SendMessage(tenant, admin,
		"Leaking faucet in unit 4B",
		"The kitchen faucet has been dripping since Monday. Can someone take a look this week?",
		messaging.SendOptions{ConversationID: convID},
	); err != nil {
		return err
	}
	if _, err := messaging.SendMessage(admin, tenant,
		"Re: Leaking faucet in unit 4B",
		"Thanks for the report. A plumber is scheduled for Thursday morning.",
		messaging.SendOptions{ConversationID: convID},
	); err != nil {
		return err
	}

	// owner <-> admin statement thread
	if _, err := messaging.SendMessage(admin, owner,
		"March owner statement",
		"Your March statement is ready. Net proceeds were transferred today.",
		messaging.SendOptions{
			Type:    models.TypeNotification,
			Related: &models.RelatedResource{Type: "transaction", ID: "txn_2093"},
		},
	); err != nil {
		return err
	}

	// system reminders
	reminders := []struct {
		to  models.Party
		tpl models.MessageTemplate
	}{
		{tenant, models.MessageTemplate{
			Subject:  "Rent due in 3 days",
			Content:  "This is a reminder that rent for unit 4B is due on the 1st.",
			Type:     models.TypeReminder,
			Priority: models.PriorityHigh,
		}},
		{owner, models.MessageTemplate{
			Subject:  "Lease renewal approaching",
			Content:  "The lease for unit 4B expires in 60 days. Review renewal terms.",
			Type:     models.TypeAlert,
			Priority: models.PriorityMedium,
		}},
	}
	for _, r := range reminders {
		if _, err := messaging.SendAutomatedMessage(r.to, r.tpl, nil); err != nil {
			return err
		}
	}
	return nil
}
