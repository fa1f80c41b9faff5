//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/naga"
)

// compileWGSL compiles WGSL source to the little-endian SPIR-V words the
// HAL shader module path expects.
func compileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("native: compile shader: %w", err)
	}

	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}

// frameWGSL declares the shared bindings. Offsets match
// gpucompute.FrameUniforms; vertex layout matches gpucompute.VertexStride.
const frameWGSL = `
struct Frame {
    projection: array<vec4<f32>, 4>,
    view_rotation: vec4<f32>,
    view_translation: vec3<f32>,
    num_splats: u32,
    camera_pos: vec3<f32>,
    sort_mode: u32,
    view_dir: vec3<f32>,
    depth_bias: f32,
    viewport: vec2<f32>,
    focal: vec2<f32>,
    max_std_dev: f32,
    min_alpha: f32,
    min_pixel_radius: f32,
    max_pixel_radius: f32,
    clip_factor: f32,
    pre_blur: f32,
    blur: f32,
    use_sorted: u32,
    rgb_min: f32,
    rgb_max: f32,
    ln_scale_min: f32,
    ln_scale_max: f32,
    orthographic: u32,
    pad0: u32,
    pad1: u32,
    pad2: u32,
}

struct Vertex {
    position: vec4<f32>,
    color: vec4<f32>,
    uv: vec4<f32>,
}

@group(0) @binding(0) var<uniform> frame: Frame;
@group(0) @binding(1) var<storage, read> splats: array<vec4<u32>>;
@group(0) @binding(2) var<storage, read_write> keys: array<f32>;
@group(0) @binding(3) var<storage, read> order: array<u32>;
@group(0) @binding(4) var<storage, read_write> vertices: array<Vertex>;

fn splat_center(s: vec4<u32>) -> vec3<f32> {
    let xy = unpack2x16float(s.y);
    let z = unpack2x16float(s.z).x;
    return vec3<f32>(xy, z);
}
`

// distanceWGSL computes one ordering key per splat. Non-finite keys
// collapse to -inf so they land after every valid splat in the
// descending sort.
const distanceWGSL = frameWGSL + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    if (i >= frame.num_splats) {
        return;
    }
    let to_splat = splat_center(splats[i]) - frame.camera_pos;

    var key: f32;
    if (frame.sort_mode == 1u) {
        key = dot(to_splat, frame.view_dir) + frame.depth_bias;
    } else {
        key = length(to_splat);
    }
    if (key - key != 0.0 || key != key) {
        key = bitcast<f32>(0xff800000u);
    }
    keys[i] = key;
}
`

// projectWGSL mirrors the CPU projection stage: decode, view transform,
// covariance projection, blur dilation with alpha correction, closed-form
// eigendecomposition and quad emission. Invalid splats write a quad
// outside NDC so batch offsets stay constant.
const projectWGSL = frameWGSL + `
const COV_EPSILON: f32 = 1e-12;

fn quat_rotate(q: vec4<f32>, v: vec3<f32>) -> vec3<f32> {
    let c = cross(q.xyz, v);
    return v + c * (2.0 * q.w) + cross(q.xyz * 2.0, c);
}

fn quat_mul(q: vec4<f32>, p: vec4<f32>) -> vec4<f32> {
    return vec4<f32>(
        cross(q.xyz, p.xyz) + p.xyz * q.w + q.xyz * p.w,
        q.w * p.w - dot(q.xyz, p.xyz),
    );
}

fn decode_scale(v: u32) -> f32 {
    if (v == 0u) {
        return 0.0;
    }
    let ln = frame.ln_scale_min + f32(v - 1u) * (frame.ln_scale_max - frame.ln_scale_min) / 254.0;
    return exp(ln);
}

fn decode_rotation(code: u32) -> vec4<f32> {
    let fx = f32(code & 0xffu) / 255.0 * 2.0 - 1.0;
    let fy = f32((code >> 8u) & 0xffu) / 255.0 * 2.0 - 1.0;

    let az = 1.0 - abs(fx) - abs(fy);
    let t = max(-az, 0.0);
    var ax = fx;
    var ay = fy;
    if (ax >= 0.0) { ax -= t; } else { ax += t; }
    if (ay >= 0.0) { ay -= t; } else { ay += t; }
    let axis = normalize(vec3<f32>(ax, ay, az));

    let theta = f32((code >> 16u) & 0xffu) / 255.0 * 3.14159265358979;
    return vec4<f32>(axis * sin(theta * 0.5), cos(theta * 0.5));
}

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let slot = gid.x;
    if (slot >= frame.num_splats) {
        return;
    }
    var index = slot;
    if (frame.use_sorted == 1u) {
        index = order[slot];
    }
    let s = splats[index];

    let rgb_span = frame.rgb_max - frame.rgb_min;
    let color = vec3<f32>(
        frame.rgb_min + f32(s.x & 0xffu) / 255.0 * rgb_span,
        frame.rgb_min + f32((s.x >> 8u) & 0xffu) / 255.0 * rgb_span,
        frame.rgb_min + f32((s.x >> 16u) & 0xffu) / 255.0 * rgb_span,
    );
    let alpha = f32(s.x >> 24u) / 255.0;

    let center = splat_center(s);
    let scale = vec3<f32>(
        decode_scale(s.w & 0xffu),
        decode_scale((s.w >> 8u) & 0xffu),
        decode_scale((s.w >> 16u) & 0xffu),
    );
    let code = (s.z >> 16u) | ((s.w >> 24u) << 16u);
    let rotation = decode_rotation(code);

    let alpha_valid = alpha >= frame.min_alpha;
    let has_scale = scale.x > 0.0 || scale.y > 0.0 || scale.z > 0.0;

    let view_q = frame.view_rotation;
    let view_center = quat_rotate(view_q, center) + frame.view_translation;
    let in_front = view_center.z < 0.0;

    let p = frame.projection;
    let h = vec4<f32>(view_center, 1.0);
    let clip = vec4<f32>(dot(p[0], h), dot(p[1], h), dot(p[2], h), dot(p[3], h));
    let within_depth = abs(clip.z) < clip.w;
    let within_xy = abs(clip.x) <= frame.clip_factor * clip.w
        && abs(clip.y) <= frame.clip_factor * clip.w;

    var w = clip.w;
    if (w == 0.0) {
        w = 1.0;
    }
    let ndc_center = clip.xyz / w;

    // Rotation matrix of view_q * rotation with columns scaled, then
    // Cov = M * transpose(M).
    let q = quat_mul(view_q, rotation);
    let qx = q.x; let qy = q.y; let qz = q.z; let qw = q.w;
    let r0 = vec3<f32>(
        scale.x * (1.0 - 2.0 * (qy * qy + qz * qz)),
        scale.y * 2.0 * (qx * qy - qw * qz),
        scale.z * 2.0 * (qx * qz + qw * qy),
    );
    let r1 = vec3<f32>(
        scale.x * 2.0 * (qx * qy + qw * qz),
        scale.y * (1.0 - 2.0 * (qx * qx + qz * qz)),
        scale.z * 2.0 * (qy * qz - qw * qx),
    );
    let r2 = vec3<f32>(
        scale.x * 2.0 * (qx * qz - qw * qy),
        scale.y * 2.0 * (qy * qz + qw * qx),
        scale.z * (1.0 - 2.0 * (qx * qx + qy * qy)),
    );
    let cxx = dot(r0, r0);
    let cxy = dot(r0, r1);
    let cxz = dot(r0, r2);
    let cyy = dot(r1, r1);
    let cyz = dot(r1, r2);
    let czz = dot(r2, r2);

    var a: f32;
    var b: f32;
    var d: f32;
    if (frame.orthographic == 1u) {
        a = frame.focal.x * frame.focal.x * cxx;
        b = frame.focal.x * frame.focal.y * cxy;
        d = frame.focal.y * frame.focal.y * cyy;
    } else {
        var z = view_center.z;
        if (z == 0.0) {
            z = 1.0;
        }
        let j00 = frame.focal.x / z;
        let j02 = -frame.focal.x * view_center.x / (z * z);
        let j11 = frame.focal.y / z;
        let j12 = -frame.focal.y * view_center.y / (z * z);

        a = j00 * (j00 * cxx + j02 * cxz) + j02 * (j00 * cxz + j02 * czz);
        b = j00 * (j11 * cxy + j12 * cxz) + j02 * (j11 * cyz + j12 * czz);
        d = j11 * (j11 * cyy + j12 * cyz) + j12 * (j11 * cyz + j12 * czz);
    }

    a += frame.pre_blur;
    d += frame.pre_blur;
    let det_orig = a * d - b * b;
    a += frame.blur;
    d += frame.blur;
    let det_blurred = a * d - b * b;
    let correction = sqrt(max(0.0, det_orig / max(det_blurred, COV_EPSILON)));
    let final_alpha = alpha * correction;
    let final_alpha_valid = final_alpha >= frame.min_alpha;

    let avg = (a + d) / 2.0;
    let delta = sqrt(max(0.0, avg * avg - det_blurred));
    let eigen1 = avg + delta;
    let eigen2 = avg - delta;
    var v1 = vec2<f32>(1.0, 0.0);
    if (abs(b) > COV_EPSILON) {
        v1 = normalize(vec2<f32>(b, eigen1 - a));
    }
    let v2 = vec2<f32>(-v1.y, v1.x);

    let r_1 = min(frame.max_pixel_radius, frame.max_std_dev * sqrt(max(0.0, eigen1)));
    let r_2 = min(frame.max_pixel_radius, frame.max_std_dev * sqrt(max(0.0, eigen2)));
    let has_min_radius = r_1 >= frame.min_pixel_radius || r_2 >= frame.min_pixel_radius;

    let is_valid = alpha_valid && has_scale && in_front
        && within_depth && within_xy && final_alpha_valid && has_min_radius;

    let base = slot * 4u;
    if (!is_valid) {
        for (var c = 0u; c < 4u; c++) {
            vertices[base + c].position = vec4<f32>(0.0, 0.0, 2.0, 1.0);
            vertices[base + c].color = vec4<f32>(0.0);
            vertices[base + c].uv = vec4<f32>(0.0);
        }
        return;
    }

    var vp = frame.viewport;
    if (vp.x <= 0.0) { vp.x = 1.0; }
    if (vp.y <= 0.0) { vp.y = 1.0; }
    let ndc_per_pixel = vec2<f32>(2.0, 2.0) / vp;
    let out_color = vec4<f32>(color, final_alpha);
    for (var c = 0u; c < 4u; c++) {
        var corner: vec2<f32>;
        switch c {
            case 0u: { corner = vec2<f32>(-1.0, -1.0); }
            case 1u: { corner = vec2<f32>(1.0, -1.0); }
            case 2u: { corner = vec2<f32>(1.0, 1.0); }
            default: { corner = vec2<f32>(-1.0, 1.0); }
        }
        let px = corner.x * v1.x * r_1 + corner.y * v2.x * r_2;
        let py = corner.x * v1.y * r_1 + corner.y * v2.y * r_2;
        vertices[base + c].position = vec4<f32>(
            ndc_center.x + px * ndc_per_pixel.x,
            ndc_center.y + py * ndc_per_pixel.y,
            ndc_center.z,
            1.0,
        );
        vertices[base + c].color = out_color;
        vertices[base + c].uv = vec4<f32>(corner * frame.max_std_dev, 0.0, 0.0);
    }
}
`
