package billing

import (
	"github.com/gofiber/fiber/v2/log"
)

// PostAction is a best-effort side effect run after the primary financial
// transition has committed: tier fan-out, email enqueue. Each action has its
// own failure boundary so none of them can fail the webhook.
type PostAction struct {
	Name string
	Run  func() error
}

// RunPostActions executes every action, logging and swallowing failures and
// panics. The primary transition must never depend on anything in here.
func RunPostActions(actions []PostAction) {
	for _, action := range actions {
		runPostAction(action)
	}
}

func runPostAction(action PostAction) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Billing] post action %s panicked: %v", action.Name, r)
		}
	}()
	if err := action.Run(); err != nil {
		log.Warnf("[Billing] post action %s failed: %v", action.Name, err)
	}
}
