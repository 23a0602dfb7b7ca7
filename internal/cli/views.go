package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/lanatus/internal/ledger"
)

type accountView struct {
	Player    string `json:"player"`
	Melons    int64  `json:"melons"`
	LastRank  string `json:"last_rank"`
	Persisted bool   `json:"persisted"`
}

func newAccountView(s *ledger.AccountSnapshot) accountView {
	return accountView{
		Player:    s.PlayerID.String(),
		Melons:    s.Melons,
		LastRank:  s.LastRank,
		Persisted: s.Persisted,
	}
}

func (v accountView) String() string {
	s := fmt.Sprintf("%s  melons=%d  rank=%s", v.Player, v.Melons, v.LastRank)
	if !v.Persisted {
		s += "  (no account row)"
	}
	return s
}

type productView struct {
	ID          string `json:"id"`
	Module      string `json:"module"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	MelonsCost  int64  `json:"melons_cost"`
	Active      bool   `json:"active"`
	Permanent   bool   `json:"permanent"`
}

func newProductView(p *ledger.Product) productView {
	return productView{
		ID:          p.ID().String(),
		Module:      p.Module(),
		Name:        p.Name(),
		DisplayName: p.DisplayName(),
		Description: p.Description(),
		Icon:        p.Icon(),
		MelonsCost:  p.MelonsCost(),
		Active:      p.Active(),
		Permanent:   p.Permanent(),
	}
}

func (v productView) String() string {
	var flags []string
	if !v.Active {
		flags = append(flags, "inactive")
	}
	if v.Permanent {
		flags = append(flags, "permanent")
	}
	s := fmt.Sprintf("%s  %s/%s  cost=%d", v.ID, v.Module, v.Name, v.MelonsCost)
	if len(flags) > 0 {
		s += "  [" + strings.Join(flags, ",") + "]"
	}
	return s
}

type productList []productView

func newProductList(products []*ledger.Product) productList {
	l := make(productList, 0, len(products))
	for _, p := range products {
		l = append(l, newProductView(p))
	}
	return l
}

func (l productList) String() string {
	if len(l) == 0 {
		return "No products."
	}
	lines := make([]string, len(l))
	for i, v := range l {
		lines[i] = v.String()
	}
	return strings.Join(lines, "\n")
}

type purchaseView struct {
	ID         string    `json:"id"`
	Player     string    `json:"player"`
	Product    string    `json:"product"`
	Created    time.Time `json:"created"`
	MelonsCost int64     `json:"melons_cost"`
	Comment    *string   `json:"comment,omitempty"`
	Data       *string   `json:"data,omitempty"`
}

func newPurchaseView(p *ledger.Purchase) purchaseView {
	v := purchaseView{
		ID:         p.ID().String(),
		Player:     p.PlayerID().String(),
		Product:    p.Product().ID().String(),
		Created:    p.Created(),
		MelonsCost: p.MelonsCost(),
	}
	if c, ok := p.Comment(); ok {
		v.Comment = &c
	}
	if d, ok := p.Data(); ok {
		v.Data = &d
	}
	return v
}

func (v purchaseView) String() string {
	s := fmt.Sprintf("%s  %s  player=%s  product=%s  cost=%d",
		v.ID, v.Created.Format(time.RFC3339), v.Player, v.Product, v.MelonsCost)
	if v.Comment != nil {
		s += fmt.Sprintf("  comment=%q", *v.Comment)
	}
	return s
}

type purchaseList []purchaseView

func newPurchaseList(purchases []*ledger.Purchase) purchaseList {
	l := make(purchaseList, 0, len(purchases))
	for _, p := range purchases {
		l = append(l, newPurchaseView(p))
	}
	return l
}

func (l purchaseList) String() string {
	if len(l) == 0 {
		return "No purchases."
	}
	lines := make([]string, len(l))
	for i, v := range l {
		lines[i] = v.String()
	}
	return strings.Join(lines, "\n")
}

// parseID parses a uuid argument, reporting a malformed one as a command
// error.
func parseID(f *OutputFormatter, what, arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		msg := fmt.Sprintf("invalid %s id %q", what, arg)
		if outErr := f.Error("INVALID_ARGUMENT", msg, nil); outErr != nil {
			return uuid.Nil, outErr
		}
		exitErr := WrapExitError(ExitCommandError, msg, err)
		exitErr.Reported = true
		return uuid.Nil, exitErr
	}
	return id, nil
}
