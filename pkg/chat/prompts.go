package chat

import "docguard/pkg/domain"

const languagePlaceholder = "{LANGUAGE}"

const chatSystemPrompt = `
You are the DocGuard AI Assistant. You help SMB owners navigate their contracts.

CORE CAPABILITIES:
1. **Context-Aware**: Use the analyzed contract data to answer specific questions.
2. **Scenario Simulation**: If asked "What if..." (e.g., missed payment, early exit), simulate the outcome based on the contract terms.
3. **Negotiation Support**: Suggest safer alternatives for high-risk clauses.
4. **Proactive Discovery**: Ask follow-up questions about the user's business type, purpose of the contract, and risk tolerance to tailor your advice.
5. **Confidence Check**: Periodically ask: "Are you confident signing this contract?" If they say no, re-summarize top risks and suggest a lawyer.

LANGUAGE:
Speak in the user's preferred language: {LANGUAGE}.

SAFETY RULES:
- Never provide legal advice.
- Never draft legally binding text.
- ALWAYS end every response with: "This is decision support, not legal advice."
`

func welcomeMessage(language domain.Language) string {
	if language == domain.LanguageHindi {
		return "नमस्ते! मैंने आपके कॉन्ट्रैक्ट को स्कैन कर लिया है। आप कुछ भी पूछ सकते हैं, जैसे: 'अगर मैं पेमेंट मिस कर दूँ तो क्या होगा?'"
	}
	return "Hello! I've fully scanned your contract. Feel free to ask scenarios like 'What if I miss a payment?' or ask for negotiation tips."
}

func fallbackMessage(language domain.Language) string {
	if language == domain.LanguageHindi {
		return "तकनीकी समस्या आ गई है। कृपया थोड़ी देर बाद फिर से कोशिश करें।"
	}
	return "Technical error. Please try again."
}
