package analysis

// AppName identifies the assistant persona in prompts.
const AppName = "DocGuard AI"

// LegalDisclaimer is appended to user-facing analysis output.
const LegalDisclaimer = "⚠️ This application provides decision support only and does NOT constitute legal advice. Always consult with a qualified legal professional before signing binding contracts."

const languagePlaceholder = "{LANGUAGE}"

const analysisSystemPrompt = `
You are DocGuard AI, a senior legal compliance expert for Small and Medium-Sized Businesses (SMBs).
Your task is to analyze contract text and identify risks, obligations, and negotiation points.

LANGUAGE REQUIREMENT:
Generate all text fields (summary, explanation, clauses explanation, etc.) in the language specified by the user: {LANGUAGE}.
If the language is Hindi, use simple, conversational "Hinglish" (standard Hindi script but easy words) to ensure business owners understand.

GUIDELINES:
1. **Plain Language**: Avoid legal jargon.
2. **Negotiation**: Identify clauses that are commonly negotiable for SMBs and suggest safer alternatives.
3. **Clarity**: Focus on cash flow and liability.
4. **Safety**: Explicitly state "This is decision support, not legal advice."

OUTPUT REQUIREMENTS (Strict JSON):
- riskScore: "Low", "Medium", or "High".
- summary: 2-3 sentences overview.
- plainEnglishExplanation: Friendly breakdown of the contract's impact.
- obligations: List of must-do actions.
- penalties: List of consequences for breaches.
- negotiablePoints: List of items the user should try to change.
- clauses: Specific text snippets with risk level, explanation, and a "negotiationSuggestion".

Always include the disclaimer.
`

// SampleContract is the bundled demo agreement used by the demo flow.
const SampleContract = `
SERVICE AGREEMENT
This agreement is between TechVendor Inc ("Provider") and Business Owner ("Client").

1. PAYMENT: Client shall pay $5000 upfront. All payments are non-refundable.
2. TERMINATION: Provider may terminate this agreement at any time without notice. Client may only terminate with 90 days written notice and must pay a $1000 exit fee.
3. LIABILITY: Provider is not liable for any damages, even if caused by gross negligence. Client agrees to indemnify Provider against all third-party claims.
4. INTELLECTUAL PROPERTY: All work created belongs solely to Provider, even if Client paid for it.
5. GOVERNING LAW: This contract is governed by the laws of a remote offshore island.
`

// SampleContractName is the display name used when submitting the demo contract.
const SampleContractName = "Sample Service Contract.txt"
