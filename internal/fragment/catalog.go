package fragment

import "strings"

// Canonical tokens understood by the composer. External fragment files use
// InputPlaceholder/OutputPlaceholder instead and are normalized on load.
const (
	InputToken  = "{input}"
	OutputToken = "{output}"

	InputPlaceholder  = "__INPUT__"
	OutputPlaceholder = "__OUTPUT__"
)

// BinaryMagic starts every compiled JSXBIN file.
const BinaryMagic = "@JSXBIN"

// OpenScript opens INPUT_PATH as `doc`.
const OpenScript = `
    // Action: open input file
    var fileRef = new File(INPUT_PATH);
    if (!fileRef.exists) throw("Input file not found: " + INPUT_PATH);
    var doc = app.open(fileRef);
`

// ResizeHalfScript halves both pixel dimensions. Scaling both sides by the
// same factor keeps the aspect ratio.
const ResizeHalfScript = `
    // Action: resize width/height to 50% (pixels)
    var wpx = doc.width.as("px");
    var hpx = doc.height.as("px");
    var newW = UnitValue(wpx/2, "px");
    var newH = UnitValue(hpx/2, "px");
    doc.resizeImage(newW, newH, doc.resolution, ResampleMethod.BICUBICSHARPER);
`

// SaveCloseScript saves by OUTPUT_PATH extension (jpg/jpeg, png, else psd)
// and closes without saving the document again.
const SaveCloseScript = `
    // Action: save to OUTPUT_PATH (jpg/png fallback to psd), then close
    var ext = OUTPUT_PATH.toLowerCase().split(".").pop();
    if (ext == "jpg" || ext == "jpeg") {
        var jpgOpts = new JPEGSaveOptions();
        jpgOpts.quality = 10; // 0-12
        doc.saveAs(new File(OUTPUT_PATH), jpgOpts, true, Extension.LOWERCASE);
    } else if (ext == "png") {
        var pngOpts = new PNGSaveOptions();
        doc.saveAs(new File(OUTPUT_PATH), pngOpts, true, Extension.LOWERCASE);
    } else {
        var psdOpts = new PhotoshopSaveOptions();
        doc.saveAs(new File(OUTPUT_PATH), psdOpts, true, Extension.LOWERCASE);
    }
    doc.close(SaveOptions.DONOTSAVECHANGES);
`

// binaryStubFormat loads and runs a compiled file. Both verbs receive the
// same portable path.
const binaryStubFormat = `
    // Action: include/execute JSXBIN file
    var includedFile = new File("%[1]s");
    if (!includedFile.exists) throw("Included jsxbin not found: " + "%[1]s");
    $.evalFile(includedFile);
`

const (
	includeBeginFormat = "\n// ----- begin included file: %s -----\n"
	includeEndFormat   = "\n// ----- end included file: %s -----\n"
)

// SaveBranch reports which branch of SaveCloseScript runs for outputPath.
// It mirrors the script's own dispatch so callers can check it up front.
func SaveBranch(outputPath string) string {
	ext := lastDotField(outputPath)
	switch ext {
	case "jpg", "jpeg":
		return "jpeg"
	case "png":
		return "png"
	default:
		return "psd"
	}
}

// EscapeJSString makes s safe inside a double-quoted ExtendScript literal.
func EscapeJSString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// lastDotField behaves like `path.toLowerCase().split(".").pop()`.
func lastDotField(path string) string {
	lower := strings.ToLower(path)
	return lower[strings.LastIndex(lower, ".")+1:]
}
