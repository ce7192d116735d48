package fiscal

import "github.com/shopspring/decimal"

// XML shapes of the payloads a distribution batch carries. Tags use local
// names only; encoding/xml matches them across the namespace prefix
// variation seen between federal units and municipal providers.

type nfeProc struct {
	NFe struct {
		InfNFe struct {
			ID  string `xml:"Id,attr"`
			Ide struct {
				Serie string `xml:"serie"`
				NNF   string `xml:"nNF"`
				DhEmi string `xml:"dhEmi"`
				DEmi  string `xml:"dEmi"`
			} `xml:"ide"`
			Emit struct {
				CNPJ  string `xml:"CNPJ"`
				XNome string `xml:"xNome"`
			} `xml:"emit"`
			Dest struct {
				CNPJ  string `xml:"CNPJ"`
				CPF   string `xml:"CPF"`
				XNome string `xml:"xNome"`
			} `xml:"dest"`
			Det   []nfeDet `xml:"det"`
			Total struct {
				ICMSTot struct {
					VBC     string `xml:"vBC"`
					VICMS   string `xml:"vICMS"`
					VST     string `xml:"vST"`
					VProd   string `xml:"vProd"`
					VFrete  string `xml:"vFrete"`
					VDesc   string `xml:"vDesc"`
					VIPI    string `xml:"vIPI"`
					VPIS    string `xml:"vPIS"`
					VCOFINS string `xml:"vCOFINS"`
					VNF     string `xml:"vNF"`
				} `xml:"ICMSTot"`
			} `xml:"total"`
		} `xml:"infNFe"`
	} `xml:"NFe"`
	ProtNFe struct {
		InfProt struct {
			ChNFe string `xml:"chNFe"`
			CStat string `xml:"cStat"`
		} `xml:"infProt"`
	} `xml:"protNFe"`
}

type nfeDet struct {
	Prod struct {
		CProd  string `xml:"cProd"`
		XProd  string `xml:"xProd"`
		NCM    string `xml:"NCM"`
		CFOP   string `xml:"CFOP"`
		UCom   string `xml:"uCom"`
		QCom   string `xml:"qCom"`
		VUnCom string `xml:"vUnCom"`
		VProd  string `xml:"vProd"`
	} `xml:"prod"`
	Imposto struct {
		ICMS nfeICMS `xml:"ICMS"`
		IPI  struct {
			IPITrib struct {
				VIPI string `xml:"vIPI"`
			} `xml:"IPITrib"`
		} `xml:"IPI"`
		PIS struct {
			PISAliq struct {
				VPIS string `xml:"vPIS"`
			} `xml:"PISAliq"`
		} `xml:"PIS"`
		COFINS struct {
			COFINSAliq struct {
				VCOFINS string `xml:"vCOFINS"`
			} `xml:"COFINSAliq"`
		} `xml:"COFINS"`
	} `xml:"imposto"`
}

// nfeICMS covers the CST groups a line can carry; exactly one is populated.
type nfeICMS struct {
	ICMS00 nfeICMSGroup `xml:"ICMS00"`
	ICMS10 nfeICMSGroup `xml:"ICMS10"`
	ICMS20 nfeICMSGroup `xml:"ICMS20"`
	ICMS40 nfeICMSGroup `xml:"ICMS40"`
	ICMS51 nfeICMSGroup `xml:"ICMS51"`
	ICMS60 nfeICMSGroup `xml:"ICMS60"`
	ICMS70 nfeICMSGroup `xml:"ICMS70"`
	ICMS90 nfeICMSGroup `xml:"ICMS90"`
}

type nfeICMSGroup struct {
	CST   string `xml:"CST"`
	VBC   string `xml:"vBC"`
	VICMS string `xml:"vICMS"`
}

// values returns the CST, base and amount of whichever group is present
func (i nfeICMS) values() (cst string, base, value decimal.Decimal) {
	for _, g := range []nfeICMSGroup{
		i.ICMS00, i.ICMS10, i.ICMS20, i.ICMS40, i.ICMS51, i.ICMS60, i.ICMS70, i.ICMS90,
	} {
		if g.CST != "" {
			return g.CST, dec(g.VBC), dec(g.VICMS)
		}
	}
	return "", decimal.Zero, decimal.Zero
}

type resNFe struct {
	ChNFe   string `xml:"chNFe"`
	CNPJ    string `xml:"CNPJ"`
	XNome   string `xml:"xNome"`
	DhEmi   string `xml:"dhEmi"`
	VNF     string `xml:"vNF"`
	CSitNFe string `xml:"cSitNFe"`
}

type resCTe struct {
	ChCTe  string `xml:"chCTe"`
	CNPJ   string `xml:"CNPJ"`
	XNome  string `xml:"xNome"`
	DhEmi  string `xml:"dhEmi"`
	VCarga string `xml:"vCarga"`
}

type procEvento struct {
	Evento struct {
		InfEvento struct {
			ChNFe    string `xml:"chNFe"`
			ChCTe    string `xml:"chCTe"`
			TpEvento string `xml:"tpEvento"`
		} `xml:"infEvento"`
	} `xml:"evento"`
}

type cteProc struct {
	CTe struct {
		InfCte struct {
			ID  string `xml:"Id,attr"`
			Ide struct {
				Serie string `xml:"serie"`
				NCT   string `xml:"nCT"`
				DhEmi string `xml:"dhEmi"`
			} `xml:"ide"`
			Emit struct {
				CNPJ  string `xml:"CNPJ"`
				XNome string `xml:"xNome"`
			} `xml:"emit"`
			Rem struct {
				CNPJ string `xml:"CNPJ"`
			} `xml:"rem"`
			Dest struct {
				CNPJ  string `xml:"CNPJ"`
				XNome string `xml:"xNome"`
			} `xml:"dest"`
			VPrest struct {
				VTPrest string `xml:"vTPrest"`
			} `xml:"vPrest"`
			Imp struct {
				ICMS struct {
					ICMS00 struct {
						VICMS string `xml:"vICMS"`
					} `xml:"ICMS00"`
				} `xml:"ICMS"`
			} `xml:"imp"`
		} `xml:"infCte"`
	} `xml:"CTe"`
	ProtCTe struct {
		InfProt struct {
			ChCTe string `xml:"chCTe"`
			CStat string `xml:"cStat"`
		} `xml:"infProt"`
	} `xml:"protCTe"`
}

// compNfse follows the ABRASF layout shared by the municipal provider
// families; field presence varies per family and missing nodes default to
// zero values.
type compNfse struct {
	Nfse struct {
		InfNfse struct {
			Numero           string `xml:"Numero"`
			CodigoVerificacao string `xml:"CodigoVerificacao"`
			DataEmissao      string `xml:"DataEmissao"`
			Competencia      string `xml:"Competencia"`
			Servico          struct {
				Valores struct {
					ValorServicos string `xml:"ValorServicos"`
					ValorIss      string `xml:"ValorIss"`
					BaseCalculo   string `xml:"BaseCalculo"`
					ValorPis      string `xml:"ValorPis"`
					ValorCofins   string `xml:"ValorCofins"`
				} `xml:"Valores"`
				Discriminacao   string `xml:"Discriminacao"`
				CodigoMunicipio string `xml:"CodigoMunicipio"`
			} `xml:"Servico"`
			PrestadorServico struct {
				IdentificacaoPrestador struct {
					Cnpj string `xml:"Cnpj"`
				} `xml:"IdentificacaoPrestador"`
				RazaoSocial string `xml:"RazaoSocial"`
			} `xml:"PrestadorServico"`
			TomadorServico struct {
				IdentificacaoTomador struct {
					CpfCnpj struct {
						Cnpj string `xml:"Cnpj"`
						Cpf  string `xml:"Cpf"`
					} `xml:"CpfCnpj"`
				} `xml:"IdentificacaoTomador"`
				RazaoSocial string `xml:"RazaoSocial"`
			} `xml:"TomadorServico"`
			NfseCancelamento struct {
				Confirmacao string `xml:"Confirmacao"`
			} `xml:"NfseCancelamento"`
		} `xml:"InfNfse"`
	} `xml:"Nfse"`
}
