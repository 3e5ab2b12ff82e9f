package scanning

// systemPrompt frames chat-style providers before the extraction prompt
const systemPrompt = "You read photographed receipts line by line and answer only with JSON."

// receiptExtractPrompt is the shared prompt used by all LLM providers
const receiptExtractPrompt = `You are an expert receipt scanner. Analyze the provided image and determine whether it is a receipt.

If it is a receipt, extract:

1. **Line Items**: Every purchased item printed on the receipt, in the order it appears. For each item report:
   - "description": the item name as printed (never empty)
   - "quantity": the quantity printed on the line, as an integer (use 1 if no quantity is shown)
   - "amount": the total price charged for the whole line (quantity times unit price), as a number
   Do not include subtotal, tax, tip, or total lines as items. Discounts attached to an item may be reported as a negative amount.

2. **Total**: The final amount paid. It is usually labeled "Total", "TOTAL", "Amount Due", or is the largest number at the bottom of the receipt. Extract only the numeric value (e.g., 42.75 for $42.75).

Return ONLY valid JSON in this exact format:
{
  "isReceipt": true,
  "total": 0.00,
  "items": [
    {"description": "Item name", "quantity": 1, "amount": 0.00}
  ]
}

Important:
- If the image is not a receipt, return {"isReceipt": false} and nothing else
- If you cannot determine the total, omit the "total" field
- Amounts must be numbers (not strings), representing dollars and cents
- Do not include any text before or after the JSON
- Do not use markdown code blocks`
