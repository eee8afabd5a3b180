package triage

import "strings"

// FallbackDepartment receives conditions no keyword rule matches
const FallbackDepartment = "General Medicine"

// DepartmentRule maps a department to lowercase substring keywords
type DepartmentRule struct {
	Department string   `json:"department"`
	Keywords   []string `json:"keywords"`
}

// DepartmentRules is evaluated in declaration order; the first department with
// any keyword contained in the condition wins. Order is observable behavior.
var DepartmentRules = []DepartmentRule{
	{"Cardiology", []string{
		"heart", "cardiac", "cardio", "angina", "arrhythmia", "atrial",
		"coronary", "myocard", "pericardi", "valve", "hypertensive heart",
		"heart attack", "heart failure", "heart block", "heart contusion",
		"tachycardia", "bradycardia", "cardiomyopathy", "endocarditis",
		"aortic", "ventricular", "premature atrial", "premature ventricular",
		"sick sinus", "mitral",
	}},
	{"Pulmonology", []string{
		"lung", "pulmonary", "respiratory", "bronch", "pneumonia", "asthma",
		"copd", "pleural", "pneumothorax", "emphysema", "croup", "tracheitis",
		"ards", "pulmonary fibrosis", "pulmonary hypertension", "apnea",
		"pneumoconiosis", "atelect",
	}},
	{"Neurology", []string{
		"brain", "neuro", "alzheimer", "parkinson", "epilep", "seizure",
		"stroke", "migraine", "meningit", "encephalit", "multiple sclerosis",
		"dementia", "cerebral", "intracranial", "guillain", "neuropath",
		"als", "huntington", "myasthenia", "narcolepsy", "tourette",
		"trigeminal", "bell palsy", "concussion", "head injury",
		"subarachnoid", "subdural", "tremor", "ataxia", "hydrocephalus",
		"moyamoya", "optic neurit",
	}},
	{"Orthopedics", []string{
		"fracture", "bone", "joint", "arthritis", "osteo", "sprain",
		"dislocation", "spondyl", "sciatica", "rotator cuff", "tendinit",
		"bursitis", "carpal tunnel", "meniscus", "ligament", "bunion",
		"plantar fasciitis", "scoliosis", "spinal stenosis", "disc",
		"lumbago", "back pain", "knee", "hip", "shoulder", "tennis elbow",
		"trigger finger", "hammer toe", "flat feet", "ganglion",
		"chondromalacia", "adhesive capsulitis",
	}},
	{"Gastroenterology", []string{
		"gastro", "liver", "hepat", "pancrea", "bowel", "colon",
		"esophag", "stomach", "intestin", "gallstone", "cholecyst",
		"appendicitis", "hernia", "ulcer", "celiac", "crohn",
		"diverticul", "irritable bowel", "cirrhosis", "gerd",
		"ileus", "volvulus", "intussusception", "gastroparesis",
		"cholangitis", "choledocholithiasis", "indigestion",
	}},
	{"Dermatology", []string{
		"skin", "dermatit", "eczema", "psoriasis", "acne", "rash",
		"melanoma", "rosacea", "lichen", "impetigo", "cellulitis",
		"fungal infection of the skin", "warts", "scabies", "hives",
		"pemphigus", "scleroderma", "vitiligo", "alopecia", "seborrheic",
		"keratosis", "lipoma", "hidradenitis", "acanthosis", "scar",
		"intertrigo", "pityriasis", "callus", "burn", "frostbite",
		"decubitus", "diaper rash",
	}},
	{"Ophthalmology", []string{
		"eye", "vision", "retina", "glaucoma", "cataract", "cornea",
		"conjunctivit", "optic", "macular", "blephar", "iridocyclit",
		"uveitis", "vitreous", "stye", "pterygium", "amblyopia",
		"astigmatism", "myopia", "hyperopia", "presbyopia", "floaters",
		"pinguecula", "scleritis", "chalazion", "trichiasis", "aphakia",
		"endophthalmitis", "subconjunctival",
	}},
	{"ENT", []string{
		"ear", "nose", "throat", "sinus", "tonsil", "laryngit",
		"pharyngit", "otitis", "hearing", "tinnitus", "deviated nasal",
		"nasal polyp", "cholesteatoma", "mastoidit", "eustachian",
		"peritonsillar", "vocal cord", "salivary", "sialoadenitis",
		"presbyacusis", "otosclerosis", "strep throat", "herpangina",
	}},
	{"Nephrology", []string{
		"kidney", "renal", "nephro", "urinary tract infection",
		"pyelonephrit", "kidney stone", "cystitis", "hydronephrosis",
		"glomerulo", "polycystic kidney", "dialysis", "bladder",
	}},
	{"Oncology", []string{
		"cancer", "tumor", "carcinoma", "sarcoma", "leukemia",
		"lymphoma", "myeloma", "metastatic", "malignant", "neoplasm",
		"myelodysplastic", "polycythemia vera", "kaposi",
		"meningioma", "ependymoma",
	}},
	{"Endocrinology", []string{
		"diabetes", "thyroid", "adrenal", "pituitary", "cushing",
		"goiter", "graves", "hashimoto", "hypoglycemia", "insulin",
		"parathyroid", "hormone disorder", "metabolic",
		"hypothyroidism", "diabetic", "glucocorticoid",
	}},
	{"Psychiatry", []string{
		"anxiety", "depression", "bipolar", "schizophren", "ptsd",
		"panic", "obsessive", "eating disorder", "phobia", "psychotic",
		"personality disorder", "adhd", "autism", "substance",
		"alcohol abuse", "drug abuse", "marijuana", "dissociative",
		"somatization", "factitious", "impulse control", "conduct disorder",
		"adjustment", "dysthymic", "insomnia", "stress reaction",
		"conversion disorder", "psychosexual",
	}},
	{"Urology", []string{
		"prostat", "urethral", "urethritis", "testicular", "epididym",
		"varicocele", "hydrocele", "cryptorchidism", "priapism",
		"phimosis", "balanitis", "spermatocele", "peyronie",
		"incontinence", "vesicoureteral", "erectile",
	}},
	{"Gynecology", []string{
		"ovarian", "uterine", "vaginal", "vulvar", "endometri",
		"cervic", "menstrual", "menopause", "pregnancy", "pcos",
		"fibroids", "pelvic inflammatory", "vaginit", "vulvodynia",
		"placenta", "preeclampsia", "ectopic pregnancy", "abortion",
		"postpartum", "galactorrhea", "infertility", "vaginismus",
		"premenstrual",
	}},
	{"Hematology", []string{
		"anemia", "hemophilia", "sickle cell", "thalassemia",
		"thrombocytopenia", "coagulation", "von willebrand",
		"hemolytic", "aplastic", "iron deficiency", "polycythemia",
		"thrombocythemia", "spherocytosis", "g6pd",
	}},
	{"Infectious Disease", []string{
		"hiv", "tuberculosis", "malaria", "dengue", "typhoid",
		"syphilis", "gonorrhea", "chlamydia", "herpes", "hepatitis",
		"mononucleosis", "lyme", "rocky mountain", "toxoplasmosis",
		"chickenpox", "mumps", "whooping cough", "scarlet fever",
		"sepsis", "meningitis", "shingles", "trichomonas",
		"histoplasmosis", "cryptococcosis", "aspergillosis", "hpv",
	}},
	{"Rheumatology", []string{
		"lupus", "rheumatoid", "vasculitis", "fibromyalgia",
		"polymyalgia", "sjogren", "reactive arthritis",
		"ankylosing spondylitis", "raynaud", "gout",
		"juvenile rheumatoid", "complex regional pain",
	}},
	{"Pediatrics", []string{
		"teething", "infant", "neonatal", "fetal alcohol",
		"hirschsprung", "down syndrome", "edward syndrome",
		"turner syndrome", "spina bifida", "tuberous sclerosis",
		"cystic fibrosis",
	}},
	{"Emergency", []string{
		"poisoning", "overdose", "trauma", "injury", "open wound",
		"cardiac arrest", "anaphylaxis", "envenomation", "carbon monoxide",
		"heat stroke", "heat exhaustion", "hemorrhage", "shock",
		"crushing", "foreign body",
	}},
	{"General Medicine", []string{
		"common cold", "flu", "allergy", "obesity", "fatigue",
		"pain disorder", "fever", "vitamin", "protein deficiency",
		"scurvy", "smoking", "dehydration", "hypovolemia",
	}},
}

// RouteDepartment maps a condition name to a department
func RouteDepartment(condition string) string {
	lower := strings.ToLower(condition)

	for _, rule := range DepartmentRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Department
			}
		}
	}

	return FallbackDepartment
}

// Departments lists department names in routing order
func Departments() []string {
	out := make([]string, 0, len(DepartmentRules))
	for _, r := range DepartmentRules {
		out = append(out, r.Department)
	}
	return out
}
