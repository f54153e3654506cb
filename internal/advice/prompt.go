package advice

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"orcamento/internal/core"
)

// BuildPrompt renders the advisor prompt for the visible entries of a month.
func BuildPrompt(entries []core.BudgetEntry, s core.BudgetSummary) string {
	var b strings.Builder
	b.WriteString("Atue como um consultor financeiro sênior. Analise o seguinte orçamento mensal de um usuário:\n\n")
	b.WriteString("Resumo:\n")
	fmt.Fprintf(&b, "- Renda Total: R$ %s\n", s.TotalIncome)
	fmt.Fprintf(&b, "- Gastos Totais: R$ %s\n", s.TotalExpenses)
	fmt.Fprintf(&b, "- Saldo: R$ %s\n", s.Balance)
	fmt.Fprintf(&b, "- %% da Renda Consumida: %s%%\n\n", decimal.NewFromFloat(s.PercentageUsed).StringFixed(1))

	b.WriteString("Lista de Transações:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- [%s] %s: R$ %s (%s)\n", e.Type.Label(), e.Description, e.Amount, e.Category)
	}

	b.WriteString("\nPor favor, forneça:\n")
	b.WriteString("1. Uma análise rápida da saúde financeira.\n")
	b.WriteString("2. Três dicas práticas para economizar ou investir melhor com base nestes dados.\n")
	b.WriteString("3. Um alerta se houver algum risco de endividamento.\n\n")
	b.WriteString("Responda em Português de forma amigável e profissional, usando markdown.\n")
	return b.String()
}
