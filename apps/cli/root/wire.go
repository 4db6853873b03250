package root

import (
	"github.com/homebasehq/homebase/apps/cli/cmd/auth"
	"github.com/homebasehq/homebase/apps/cli/cmd/db"
	"github.com/homebasehq/homebase/apps/cli/cmd/invite"
)

func init() {
	Root().AddCommand(auth.Command())
	Root().AddCommand(db.Command())
	Root().AddCommand(invite.Command())
}
