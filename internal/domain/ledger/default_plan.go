package ledger

// PlanAccount is one row of the canonical embedded chart of accounts.
type PlanAccount struct {
	Code           string
	Description    string
	Classification Classification
	Nature         Nature
	Kind           AccountKind
}

// DefaultPlan returns the canonical Brazilian chart of accounts inserted by
// ImportDefaultChart. Rows are ordered by code so parent links can be
// resolved in a single pass.
func DefaultPlan() []PlanAccount {
	return []PlanAccount{
		{"1", "ATIVO", ClassificationAsset, NatureDebit, AccountSynthetic},
		{"1.1", "ATIVO CIRCULANTE", ClassificationAsset, NatureDebit, AccountSynthetic},
		{"1.1.01", "DISPONIBILIDADES", ClassificationAsset, NatureDebit, AccountSynthetic},
		{"1.1.01.001", "Caixa", ClassificationAsset, NatureDebit, AccountAnalytic},
		{"1.1.01.002", "Bancos Conta Movimento", ClassificationAsset, NatureDebit, AccountAnalytic},
		{"1.1.01.003", "Aplicações Financeiras", ClassificationAsset, NatureDebit, AccountAnalytic},
		{"1.1.02", "CREDITOS", ClassificationAsset, NatureDebit, AccountSynthetic},
		{"1.1.02.001", "Clientes", ClassificationAsset, NatureDebit, AccountAnalytic},
		{"1.1.02.002", "Duplicatas a Receber", ClassificationAsset, NatureDebit, AccountAnalytic},
		{"1.1.02.003", "Adiantamentos a Fornecedores", ClassificationAsset, NatureDebit, AccountAnalytic},
		{"1.1.03", "ESTOQUES", ClassificationAsset, NatureDebit, AccountSynthetic},
		{"1.1.03.001", "Mercadorias para Revenda", ClassificationAsset, NatureDebit, AccountAnalytic},
		{"1.1.03.002", "Produtos Acabados", ClassificationAsset, NatureDebit, AccountAnalytic},
		{"1.1.04", "IMPOSTOS A RECUPERAR", ClassificationAsset, NatureDebit, AccountSynthetic},
		{"1.1.04.001", "ICMS a Recuperar", ClassificationAsset, NatureDebit, AccountAnalytic},
		{"1.1.04.002", "IPI a Recuperar", ClassificationAsset, NatureDebit, AccountAnalytic},
		{"1.1.04.003", "PIS a Recuperar", ClassificationAsset, NatureDebit, AccountAnalytic},
		{"1.1.04.004", "COFINS a Recuperar", ClassificationAsset, NatureDebit, AccountAnalytic},
		{"1.2", "ATIVO NAO CIRCULANTE", ClassificationAsset, NatureDebit, AccountSynthetic},
		{"1.2.01", "REALIZAVEL A LONGO PRAZO", ClassificationAsset, NatureDebit, AccountSynthetic},
		{"1.2.01.001", "Depósitos Judiciais", ClassificationAsset, NatureDebit, AccountAnalytic},
		{"1.2.02", "IMOBILIZADO", ClassificationAsset, NatureDebit, AccountSynthetic},
		{"1.2.02.001", "Máquinas e Equipamentos", ClassificationAsset, NatureDebit, AccountAnalytic},
		{"1.2.02.002", "Móveis e Utensílios", ClassificationAsset, NatureDebit, AccountAnalytic},
		{"1.2.02.003", "Veículos", ClassificationAsset, NatureDebit, AccountAnalytic},
		{"1.2.02.099", "(-) Depreciação Acumulada", ClassificationAsset, NatureCredit, AccountAnalytic},
		{"1.2.03", "INTANGIVEL", ClassificationAsset, NatureDebit, AccountSynthetic},
		{"1.2.03.001", "Software", ClassificationAsset, NatureDebit, AccountAnalytic},

		{"2", "PASSIVO", ClassificationLiability, NatureCredit, AccountSynthetic},
		{"2.1", "PASSIVO CIRCULANTE", ClassificationLiability, NatureCredit, AccountSynthetic},
		{"2.1.01", "FORNECEDORES", ClassificationLiability, NatureCredit, AccountSynthetic},
		{"2.1.01.001", "Fornecedores Nacionais", ClassificationLiability, NatureCredit, AccountAnalytic},
		{"2.1.02", "OBRIGACOES TRABALHISTAS", ClassificationLiability, NatureCredit, AccountSynthetic},
		{"2.1.02.001", "Salários a Pagar", ClassificationLiability, NatureCredit, AccountAnalytic},
		{"2.1.02.002", "INSS a Recolher", ClassificationLiability, NatureCredit, AccountAnalytic},
		{"2.1.02.003", "FGTS a Recolher", ClassificationLiability, NatureCredit, AccountAnalytic},
		{"2.1.03", "OBRIGACOES TRIBUTARIAS", ClassificationLiability, NatureCredit, AccountSynthetic},
		{"2.1.03.001", "ICMS a Recolher", ClassificationLiability, NatureCredit, AccountAnalytic},
		{"2.1.03.002", "ISS a Recolher", ClassificationLiability, NatureCredit, AccountAnalytic},
		{"2.1.03.003", "PIS a Recolher", ClassificationLiability, NatureCredit, AccountAnalytic},
		{"2.1.03.004", "COFINS a Recolher", ClassificationLiability, NatureCredit, AccountAnalytic},
		{"2.1.03.005", "Simples Nacional a Recolher", ClassificationLiability, NatureCredit, AccountAnalytic},
		{"2.2", "PASSIVO NAO CIRCULANTE", ClassificationLiability, NatureCredit, AccountSynthetic},
		{"2.2.01", "EMPRESTIMOS E FINANCIAMENTOS", ClassificationLiability, NatureCredit, AccountSynthetic},
		{"2.2.01.001", "Financiamentos Bancários LP", ClassificationLiability, NatureCredit, AccountAnalytic},

		{"3", "PATRIMONIO LIQUIDO", ClassificationEquity, NatureCredit, AccountSynthetic},
		{"3.1", "CAPITAL SOCIAL", ClassificationEquity, NatureCredit, AccountSynthetic},
		{"3.1.01", "Capital Subscrito", ClassificationEquity, NatureCredit, AccountAnalytic},
		{"3.2", "RESERVAS", ClassificationEquity, NatureCredit, AccountSynthetic},
		{"3.2.01", "Reserva de Lucros", ClassificationEquity, NatureCredit, AccountAnalytic},
		{"3.3", "RESULTADOS ACUMULADOS", ClassificationEquity, NatureCredit, AccountSynthetic},
		{"3.3.01", "Lucros Acumulados", ClassificationEquity, NatureCredit, AccountAnalytic},
		{"3.3.02", "(-) Prejuízos Acumulados", ClassificationEquity, NatureDebit, AccountAnalytic},

		{"4", "RECEITAS", ClassificationRevenue, NatureCredit, AccountSynthetic},
		{"4.1", "RECEITA BRUTA DE VENDAS", ClassificationRevenue, NatureCredit, AccountSynthetic},
		{"4.1.01", "Licenciamento de Software", ClassificationRevenue, NatureCredit, AccountAnalytic},
		{"4.1.02", "Prestação de Serviços", ClassificationRevenue, NatureCredit, AccountAnalytic},
		{"4.1.03", "Venda de Mercadorias", ClassificationRevenue, NatureCredit, AccountAnalytic},
		{"4.9", "DEDUCOES DA RECEITA BRUTA", ClassificationRevenue, NatureDebit, AccountSynthetic},
		{"4.9.01", "Impostos sobre Vendas", ClassificationRevenue, NatureDebit, AccountAnalytic},
		{"4.9.02", "Devoluções de Vendas", ClassificationRevenue, NatureDebit, AccountAnalytic},
		{"4.9.03", "Descontos Incondicionais", ClassificationRevenue, NatureDebit, AccountAnalytic},

		{"5", "CUSTOS", ClassificationExpense, NatureDebit, AccountSynthetic},
		{"5.1", "CUSTO DAS VENDAS", ClassificationExpense, NatureDebit, AccountSynthetic},
		{"5.1.01", "Custo das Mercadorias Vendidas", ClassificationExpense, NatureDebit, AccountAnalytic},
		{"5.1.02", "Custo dos Serviços Prestados", ClassificationExpense, NatureDebit, AccountAnalytic},

		{"6", "DESPESAS OPERACIONAIS", ClassificationExpense, NatureDebit, AccountSynthetic},
		{"6.1", "DESPESAS ADMINISTRATIVAS", ClassificationExpense, NatureDebit, AccountSynthetic},
		{"6.1.01", "Salários e Encargos", ClassificationExpense, NatureDebit, AccountAnalytic},
		{"6.1.02", "Aluguéis", ClassificationExpense, NatureDebit, AccountAnalytic},
		{"6.1.03", "Energia Elétrica", ClassificationExpense, NatureDebit, AccountAnalytic},
		{"6.1.04", "Serviços de Terceiros", ClassificationExpense, NatureDebit, AccountAnalytic},
		{"6.2", "DESPESAS COMERCIAIS", ClassificationExpense, NatureDebit, AccountSynthetic},
		{"6.2.01", "Marketing e Publicidade", ClassificationExpense, NatureDebit, AccountAnalytic},
		{"6.2.02", "Comissões sobre Vendas", ClassificationExpense, NatureDebit, AccountAnalytic},

		{"7", "RESULTADO FINANCEIRO", ClassificationRevenue, NatureCredit, AccountSynthetic},
		{"7.1", "RECEITAS FINANCEIRAS", ClassificationRevenue, NatureCredit, AccountSynthetic},
		{"7.1.01", "Rendimentos de Aplicações", ClassificationRevenue, NatureCredit, AccountAnalytic},
		{"7.1.02", "Juros Ativos", ClassificationRevenue, NatureCredit, AccountAnalytic},
		{"7.2", "DESPESAS FINANCEIRAS", ClassificationExpense, NatureDebit, AccountSynthetic},
		{"7.2.01", "Juros Passivos", ClassificationExpense, NatureDebit, AccountAnalytic},
		{"7.2.02", "Tarifas Bancárias", ClassificationExpense, NatureDebit, AccountAnalytic},

		{"8", "CONTAS DE COMPENSACAO", ClassificationCompensation, NatureDebit, AccountSynthetic},
		{"8.1", "COMPENSACAO ATIVA", ClassificationCompensation, NatureDebit, AccountSynthetic},
		{"8.1.01", "Contratos de Aluguel", ClassificationCompensation, NatureDebit, AccountAnalytic},
	}
}
