package extraction

const extractionPrompt = `You extract structured data from photographs of medical prescriptions.

Rules:
1. Transcribe text exactly as written. Do not interpret, infer, or correct anything.
2. If a field is missing, unclear, or illegible, return null for it. Never guess.
3. Check medicine names, quantities, and intake instructions carefully.
4. Numbers must be numbers: age is an integer, weight (kg), height (cm) and temperature are decimals.

Return a single JSON object with exactly these keys:
{
  "patientName": "string or null",
  "age": integer or null,
  "weight": number or null,
  "height": number or null,
  "temperature": number or null,
  "hospitalName": "string or null",
  "doctorName": "string or null",
  "date": "YYYY-MM-DD or the date as written, or null",
  "medicines": [
    {
      "name": "string or null",
      "quantity": integer or null,
      "timeOfIntake": "for example Morning, Morning-Evening, 3 times daily, or null",
      "beforeOrAfterMeals": "for example Before Meals, After Meals, or null"
    }
  ]
}

Output only the raw JSON object. No markdown, no code fences, no commentary.
If the image is not a prescription, return every field as null and an empty medicines list.`

// Prompt returns the fixed instruction sent with every image.
func Prompt() string {
	return extractionPrompt
}
