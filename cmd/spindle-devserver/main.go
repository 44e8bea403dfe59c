// Command spindle-devserver runs an in-process fake of the platform API
// for local development and demos: point SPINDLE_BASE_URL at it and pull
// a seeded demo tenant without real credentials.
//
// Usage: go run ./cmd/spindle-devserver [--seed=false]
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spindleworks/spindle-go/testutil"
)

func main() {
	seed := flag.Bool("seed", true, "seed a demo project")
	flag.Parse()

	fake := testutil.NewFakeSpindle()
	defer fake.Close()

	if *seed {
		seedDemo(fake)
	}

	fmt.Println("fake Spindle API listening")
	fmt.Println()
	fmt.Printf("  export SPINDLE_BASE_URL=%s\n", fake.URL())
	fmt.Printf("  export SPINDLE_API_KEY=%s\n", fake.APIKey)
	fmt.Println()
	fmt.Println("Ctrl-C stops the server.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}

// seedDemo populates the fake with a small but representative tenant.
func seedDemo(fake *testutil.FakeSpindle) {
	p := fake.AddProject("demo", "Demo project")
	a := fake.AddAgent(p, "concierge", "Concierge agent")

	welcome := fake.AddFlow(a, "welcome", "Welcome flow")
	fake.AddSkill(welcome, "greet_visitor", "guidance", "gpt-4o",
		"Greet the visitor warmly and ask how you can help.\n")
	fake.AddEvent(welcome, "visitor_arrived", "Visitor arrived")
	fake.AddStateField(welcome, "visitor_name", "string", "")

	orders := fake.AddFlow(a, "orders", "Order support flow")
	fake.AddSkill(orders, "lookup_order", "jinja", "gpt-4o-mini",
		"Look up order {{ order_id }} and summarize its status.\n")

	fake.AddPersona("friendly", "Friendly and concise")
	fake.AddAttribute("plan", "gold")
	fake.AddArticle("refunds", "Refund policy", "Full refunds within 30 days of purchase.")
}
