package responder

import "fmt"

// translations holds the canned user-facing strings per language.
// Unknown languages fall back to English.
var translations = map[string]map[string]string{
	"en": {
		"welcome": "Hello! I'm your medical information assistant. I can help answer questions about health topics.",
		"consent_prompt": "Before we continue, please note that I provide general medical information only, not a diagnosis or treatment. " +
			"Your messages are stored to improve our conversation. Reply with \"agree\" or \"yes\" to continue.",
		"consent_confirmed": "Thank you! You can now ask me any health-related question.",
		"clarification": "%s\n\nYou can choose:\n1. Ask a medical question\n2. Something else\n3. Just browsing",
		"not_medical":   "I can only help with health-related questions. Is there something about your health I can help with?",
		"general_chat":  "Hello! Feel free to ask me any health-related question.",
	},
	"hi": {
		"welcome": "नमस्ते! मैं आपका चिकित्सा सूचना सहायक हूँ। मैं स्वास्थ्य संबंधी प्रश्नों के उत्तर देने में मदद कर सकता हूँ।",
		"consent_prompt": "आगे बढ़ने से पहले, कृपया ध्यान दें कि मैं केवल सामान्य चिकित्सा जानकारी प्रदान करता हूँ, निदान या उपचार नहीं। " +
			"आपके संदेश हमारी बातचीत को बेहतर बनाने के लिए संग्रहीत किए जाते हैं। जारी रखने के लिए \"सहमत\" या \"हाँ\" लिखें।",
		"consent_confirmed": "धन्यवाद! अब आप मुझसे कोई भी स्वास्थ्य संबंधी प्रश्न पूछ सकते हैं।",
		"clarification": "%s\n\nआप चुन सकते हैं:\n1. चिकित्सा प्रश्न पूछें\n2. कुछ और\n3. बस देख रहे हैं",
		"not_medical":   "मैं केवल स्वास्थ्य संबंधी प्रश्नों में मदद कर सकता हूँ। क्या आपके स्वास्थ्य के बारे में कुछ है जिसमें मैं मदद कर सकूँ?",
		"general_chat":  "नमस्ते! बेझिझक मुझसे कोई भी स्वास्थ्य संबंधी प्रश्न पूछें।",
	},
}

func translate(language, key string) string {
	if strings, ok := translations[language]; ok {
		if s, ok := strings[key]; ok {
			return s
		}
	}
	return translations["en"][key]
}

func clarificationMenu(language, question string) string {
	return fmt.Sprintf(translate(language, "clarification"), question)
}
