package chat

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/luxelabs/concierge/models"
)

const intentSystemPrompt = `You are an intent classifier for LUXE, a premium ecommerce store selling electronics, clothing, accessories, jewelry, home products, and fragrances.

Classify the user message into exactly one of these intents:
- "product_search": user is looking for a product, asking about products, wants recommendations, mentions a product category, material, use case, or describes what they want
- "price_filter": user mentions a budget, price range, "under X", "below X", "cheap", "affordable", "expensive", "luxury"
- "greeting": user says hi, hello, hey, thanks, bye, or makes small talk
- "store_info": user asks about shipping, returns, store policies, payment methods
- "off_topic": anything not related to shopping or products (politics, coding, recipes, sports, etc.)

Also extract:
- "corrected_query": the user's message with ALL spelling mistakes and typos fixed, grammar corrected. If no typos, return the original.
- "budget": if a price/budget is mentioned, extract the number. Otherwise null.
- "category": if a product category is clearly mentioned, extract it (electronics/clothing/accessories/jewelry/home/fragrance). Otherwise null.

Respond ONLY with valid JSON:
{
  "intent": "product_search|price_filter|greeting|store_info|off_topic",
  "corrected_query": "...",
  "budget": null or number,
  "category": null or "string"
}`

const streamSystemPrompt = `You are a warm, knowledgeable shopping assistant for LUXE, a premium ecommerce store selling electronics, clothing, accessories, jewelry, home products, and fragrances.

RULES:
- Only recommend products from the catalog provided. Never invent products.
- Never answer questions unrelated to the store or products.
- Use conversation history for follow-ups like "something cheaper" or "show me more".
- Mention product names and prices naturally in your response.
- If the user wants to compare products, describe the key differences clearly.
- If the user wants to add something to cart, confirm which product you're adding.
- Be concise, warm, and helpful. 2-4 sentences max.
- Write plain conversational text only. No JSON. No bullet points. No markdown.`

const extractSystemPrompt = `You are a structured data extractor. Given a conversation, extract actions and product selections.

Return ONLY valid JSON with exactly these fields:
{
  "productIds": ["id1", "id2"],
  "cartProductIds": [],
  "compareProductIds": []
}

Rules:
- "productIds": up to 4 product IDs the assistant recommended or discussed (max 4)
- "cartProductIds": product IDs the user wants to add to cart. Can be multiple if user said "add both" or "add all". Empty array if no cart intent.
- "compareProductIds": exactly 2 product IDs if user asked to compare. Empty array otherwise.
- Use ONLY IDs from the provided product list. Never invent IDs.
- Return empty arrays [] for fields with no data. Never return null.`

var greetingResponses = []string{
	"Hello! Welcome to LUXE. I'm here to help you find the perfect product. What are you looking for today?",
	"Hi there! I'm your LUXE shopping assistant. Ask me about our electronics, clothing, jewelry, accessories, fragrances, or home products!",
	"Hey! Great to have you here. I can help you discover amazing products at LUXE. What can I find for you?",
}

const storeInfoResponse = "For questions about shipping, returns, or store policies, please visit our Help Center or contact our support team. I'm best at helping you find the perfect products! What are you looking for today?"

const offTopicResponse = "I'm specialized in helping you find amazing products at LUXE! I can assist with product recommendations across our electronics, clothing, jewelry, accessories, fragrance, and home categories. What would you like to explore?"

const noMatchesResponse = "I couldn't find any products matching your query. Try browsing our categories — we have electronics, clothing, jewelry, accessories, fragrances, and home items!"

const unresolvedMatchesResponse = "I found some potential matches but couldn't retrieve their details. Please try again."

// UserSafeErrorMessage is the only failure text ever shown to a client;
// internal detail stays in the logs.
const UserSafeErrorMessage = "Sorry, I'm having trouble right now. Please try again in a moment."

func greetingResponse() string {
	return greetingResponses[rand.Intn(len(greetingResponses))]
}

func shortCircuitResponse(intent models.Intent) string {
	switch intent {
	case models.IntentGreeting:
		return greetingResponse()
	case models.IntentStoreInfo:
		return storeInfoResponse
	default:
		return offTopicResponse
	}
}

// buildProductContext serializes the candidate set for the generator.
func buildProductContext(products []models.Product) string {
	blocks := make([]string, 0, len(products))
	for _, p := range products {
		lines := []string{
			fmt.Sprintf("ID: %s", p.ID),
			fmt.Sprintf("Name: %s", p.Name),
			fmt.Sprintf("Category: %s", p.Category),
			fmt.Sprintf("Price: $%g", p.Price),
			fmt.Sprintf("Description: %s", p.Description),
		}
		if len(p.Sizes) > 0 {
			lines = append(lines, fmt.Sprintf("Clothing Sizes: %s", strings.Join(p.Sizes, ", ")))
		}
		if len(p.ShoeSizes) > 0 {
			lines = append(lines, fmt.Sprintf("Shoe Sizes: %s", strings.Join(p.ShoeSizes, ", ")))
		}
		if p.IsFeatured {
			lines = append(lines, "Featured: Yes")
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// buildContextHeader annotates the raw message with the corrected query
// and extracted constraints.
func buildContextHeader(userMessage, correctedQuery string, budget float64, category string) string {
	lines := []string{fmt.Sprintf("Customer message: %q", userMessage)}
	if correctedQuery != "" && correctedQuery != userMessage {
		lines = append(lines, fmt.Sprintf("(Interpreted as: %q)", correctedQuery))
	}
	if budget > 0 {
		lines = append(lines, fmt.Sprintf("Customer budget: $%g", budget))
	}
	if category != "" {
		lines = append(lines, fmt.Sprintf("Category focus: %s", category))
	}
	return strings.Join(lines, "\n")
}

// buildProductList is the compact id | name | price listing shown to the
// extractor.
func buildProductList(products []models.Product) string {
	lines := make([]string, 0, len(products))
	for _, p := range products {
		lines = append(lines, fmt.Sprintf("ID: %s | Name: %s | Price: $%g", p.ID, p.Name, p.Price))
	}
	return strings.Join(lines, "\n")
}
